package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 応答パースはJSONとしての厳密なパースのみを行う。
// モデルが散文やコードフェンスを前置した場合はパース失敗として扱い、
// 部分復元やリペアプロンプトによる再試行は行わない。

// ParseError はLLM応答のパース失敗を表す。
type ParseError struct {
	Intent Intent
	Cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s 応答のパースに失敗しました: %v", e.Intent, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// InterpretPerson は人物パースインテントの応答を解釈する。
// nameが空の場合は有効な人物として扱わずエラーを返す。
func InterpretPerson(text string) (*ParsedPerson, error) {
	person := &ParsedPerson{}
	if err := strictUnmarshal(text, person); err != nil {
		return nil, &ParseError{Intent: IntentParsePerson, Cause: err}
	}
	if person.Name == "" {
		return nil, &ParseError{Intent: IntentParsePerson, Cause: fmt.Errorf("nameが空です")}
	}
	return person, nil
}

// InterpretEvent は日付パースインテントの応答を解釈する。
func InterpretEvent(text string) (*ParsedEvent, error) {
	event := &ParsedEvent{}
	if err := strictUnmarshal(text, event); err != nil {
		return nil, &ParseError{Intent: IntentParseEvent, Cause: err}
	}
	if event.Name == "" {
		return nil, &ParseError{Intent: IntentParseEvent, Cause: fmt.Errorf("nameが空です")}
	}
	return event, nil
}

// InterpretSearchEnhancement は検索強化インテントの応答を解釈する。
func InterpretSearchEnhancement(text string) (*SearchEnhancement, error) {
	enhancement := &SearchEnhancement{}
	if err := strictUnmarshal(text, enhancement); err != nil {
		return nil, &ParseError{Intent: IntentEnhanceSearch, Cause: err}
	}
	return enhancement, nil
}

// InterpretRecommendations はギフト推薦インテントの応答を解釈する。
func InterpretRecommendations(text string) ([]GiftRecommendation, error) {
	var recommendations []GiftRecommendation
	if err := strictUnmarshal(text, &recommendations); err != nil {
		return nil, &ParseError{Intent: IntentRecommendGifts, Cause: err}
	}
	return recommendations, nil
}

// InterpretConversation は会話インテントの応答エンベロープを解釈する。
func InterpretConversation(text string) (*ConversationResult, error) {
	result := &ConversationResult{}
	if err := strictUnmarshal(text, result); err != nil {
		return nil, &ParseError{Intent: IntentConversation, Cause: err}
	}
	if result.Reply == "" {
		return nil, &ParseError{Intent: IntentConversation, Cause: fmt.Errorf("replyが空です")}
	}
	return result, nil
}

// strictUnmarshal は前後の空白のみを許容してJSONをデコードする。
func strictUnmarshal(text string, v any) error {
	return json.Unmarshal([]byte(strings.TrimSpace(text)), v)
}
