package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/giftman/internal/model"
)

// PersonCreator は人物パース結果からの人物登録インターフェース。
type PersonCreator interface {
	CreateFromParsed(ctx context.Context, userID string, parsed *ParsedPerson, rawInput string) (*model.Person, error)
}

// EventCreator は日付パース結果からの特別な日付登録インターフェース。
type EventCreator interface {
	CreateFromParsed(ctx context.Context, userID string, parsed *ParsedEvent) (*model.SpecialDate, error)
}

// ProductSearcher は商品検索のインターフェース。
type ProductSearcher interface {
	Search(ctx context.Context, query string) ([]*model.Product, error)
	ListAll(ctx context.Context) ([]*model.Product, error)
}

// OutcomeKind はディスパッチ結果の種別を表す。
type OutcomeKind string

const (
	// OutcomePendingConfirmation は実行前にユーザー確認を要する保留アクション。
	OutcomePendingConfirmation OutcomeKind = "pending_confirmation"
	// OutcomeProducts は商品検索の結果。
	OutcomeProducts OutcomeKind = "products"
	// OutcomeFollowUp はユーザーへのフォローアップ質問。
	OutcomeFollowUp OutcomeKind = "follow_up"
	// OutcomeCreated はレコード作成の完了。
	OutcomeCreated OutcomeKind = "created"
)

// DispatchOutcome は1アクションのディスパッチ結果を表す。
type DispatchOutcome struct {
	Kind     OutcomeKind
	Action   Action
	Products []*model.Product
	Prompt   string
	Person   *model.Person
	Event    *model.SpecialDate
}

// Dispatcher は解釈済みアクションを永続化API呼び出しへ写像する。
// 1アクションにつき1ステップのディスパッチで、アクションの連鎖は発生しない。
type Dispatcher struct {
	personCreator PersonCreator
	eventCreator  EventCreator
	products      ProductSearcher
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(personCreator PersonCreator, eventCreator EventCreator, products ProductSearcher) *Dispatcher {
	return &Dispatcher{
		personCreator: personCreator,
		eventCreator:  eventCreator,
		products:      products,
	}
}

// Dispatch は1つのアクションを処理する。
// 作成系アクションは即時実行せず、確認待ちとして返す。
// 検索系アクションは即時実行し結果を返す。
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, action Action) (*DispatchOutcome, error) {
	switch action.Type {
	case ActionAddPerson, ActionCreateEvent:
		// 作成はユーザーの明示的な確認後にConfirmで実行される
		return &DispatchOutcome{Kind: OutcomePendingConfirmation, Action: action}, nil

	case ActionSearchProducts, ActionBrowseProducts:
		products, err := d.searchProducts(ctx, action.Query)
		if err != nil {
			return nil, err
		}
		return &DispatchOutcome{Kind: OutcomeProducts, Action: action, Products: products}, nil

	case ActionAskFollowUp:
		return &DispatchOutcome{Kind: OutcomeFollowUp, Action: action, Prompt: action.Prompt}, nil

	default:
		return nil, fmt.Errorf("未知のアクション種別です: %s", action.Type)
	}
}

// Confirm は確認済みの作成アクションを実行する。
func (d *Dispatcher) Confirm(ctx context.Context, userID string, action Action) (*DispatchOutcome, error) {
	switch action.Type {
	case ActionAddPerson:
		if action.Person == nil {
			return nil, fmt.Errorf("add_personアクションに人物データがありません")
		}
		person, err := d.personCreator.CreateFromParsed(ctx, userID, action.Person, "")
		if err != nil {
			return nil, err
		}
		return &DispatchOutcome{Kind: OutcomeCreated, Action: action, Person: person}, nil

	case ActionCreateEvent:
		if action.Event == nil {
			return nil, fmt.Errorf("create_eventアクションに日付データがありません")
		}
		event, err := d.eventCreator.CreateFromParsed(ctx, userID, action.Event)
		if err != nil {
			return nil, err
		}
		return &DispatchOutcome{Kind: OutcomeCreated, Action: action, Event: event}, nil

	default:
		return nil, fmt.Errorf("確認実行できないアクション種別です: %s", action.Type)
	}
}

// searchProducts はクエリで商品を検索する。
// "all products" はLLMを経由しない全件取得の特別クエリ。
func (d *Dispatcher) searchProducts(ctx context.Context, query string) ([]*model.Product, error) {
	if query == "" || strings.EqualFold(strings.TrimSpace(query), AllProductsQuery) {
		return d.products.ListAll(ctx)
	}
	return d.products.Search(ctx, query)
}
