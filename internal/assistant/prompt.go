package assistant

import (
	"fmt"
	"strings"

	"github.com/hitoshi/giftman/internal/anthropic"
)

// システムプロンプトはインテントごとの固定文字列。
// テンプレートエンジンは使わず、出力JSONの形式と実例を直接記述する。

const personSystemPrompt = `You are an assistant for a gift-tracking application.
Extract a person record from the user's free-text input.
Respond with ONLY a JSON object, no prose, no markdown fences, in this exact shape:
{"name": string, "relationship": string, "age": number, "birthday": "YYYY-MM-DD", "interests": [string], "address": string, "notes": string, "confidence": number}

- "name" is required. If no name can be identified, use an empty string and confidence 0.
- "birthday": resolve partial dates against the current year. Omitted fields use "" / 0 / [].
- "interests" preserves the order the user mentioned them.
- "address" is a postal or free-form address if the user dictates one, else "".
- "confidence" is your certainty in [0,1].

Example.
Input: "Add my mom Mary, 68 years old, born June 5th, loves gardening and cooking"
Output: {"name":"Mary","relationship":"mother","age":68,"birthday":"2024-06-05","interests":["gardening","cooking"],"address":"","notes":"","confidence":0.92}`

const eventSystemPrompt = `You are an assistant for a gift-tracking application.
Extract a special-date record from the user's free-text input.
Respond with ONLY a JSON object, no prose, no markdown fences, in this exact shape:
{"name": string, "person_name": string, "date": "YYYY-MM-DD", "recurrence": "none"|"annual"|"quarterly"|"monthly", "category": string, "confidence": number}

- Birthdays and anniversaries default to "annual" recurrence.
- "person_name" is the referenced person's name if mentioned, else "".

Example.
Input: "My parents' wedding anniversary is October 12th"
Output: {"name":"Wedding anniversary","person_name":"","date":"2024-10-12","recurrence":"annual","category":"anniversary","confidence":0.9}`

const searchSystemPrompt = `You are a gift-search assistant.
Expand the user's search query into keywords and product categories.
Respond with ONLY a JSON object, no prose, no markdown fences, in this exact shape:
{"keywords": [string], "categories": [string], "price_max": number}

- "price_max" is 0 when no budget is mentioned.

Example.
Input: "something for a coffee lover under 5000 yen"
Output: {"keywords":["coffee","barista","espresso"],"categories":["kitchen","gourmet"],"price_max":5000}`

const recommendSystemPrompt = `You are a gift-recommendation assistant.
Given a person's profile, suggest gift ideas.
Respond with ONLY a JSON array, no prose, no markdown fences. Each element:
{"name": string, "category": string, "reason": string, "price_min": number, "price_max": number}

Suggest 3 to 5 ideas grounded in the person's interests and relationship.`

const conversationSystemPrompt = `You are the conversational assistant of a gift-tracking application.
The user manages people, special dates, and gift products. Understand the message and respond
with ONLY a JSON object, no prose, no markdown fences, in this exact shape:
{"reply": string, "actions": [Action], "search_query": string}

Action is one of:
{"type":"add_person","person":{"name":string,"relationship":string,"age":number,"birthday":"YYYY-MM-DD","interests":[string],"notes":string,"confidence":number}}
{"type":"create_event","event":{"name":string,"person_name":string,"date":"YYYY-MM-DD","recurrence":string,"category":string,"confidence":number}}
{"type":"search_products","query":string}
{"type":"ask_follow_up","prompt":string}

- "reply" is always present: a short, friendly message shown to the user.
- Return zero actions for small talk. Never chain actions: one user message yields at most the
  actions directly requested by that message.
- "search_query" is set when the reply implies showing products.

Example.
Input: "Add my mom Mary, 68 years old, born June 5th, loves gardening and cooking"
Output: {"reply":"I can add Mary to your people. Shall I save her?","actions":[{"type":"add_person","person":{"name":"Mary","relationship":"mother","age":68,"birthday":"2024-06-05","interests":["gardening","cooking"],"notes":"","confidence":0.92}}],"search_query":""}`

// PromptContext はプロンプト構築に使う軽量なコンテキストを表す。
// 既存の人物名・日付名は会話インテントの参照解決の助けとして渡す。
type PromptContext struct {
	PeopleNames []string
	EventNames  []string
}

// BuildPrompt はインテントと入力からシステムプロンプトとユーザーメッセージを構築する。
// 純粋な文字列構築であり失敗しない。未知のインテントは会話インテントとして扱う。
func BuildPrompt(intent Intent, input string, promptCtx PromptContext) (system string, user string) {
	switch intent {
	case IntentParsePerson:
		system = personSystemPrompt
	case IntentParseEvent:
		system = eventSystemPrompt
	case IntentEnhanceSearch:
		system = searchSystemPrompt
	case IntentRecommendGifts:
		system = recommendSystemPrompt
	default:
		system = conversationSystemPrompt
	}

	user = input
	if intent == IntentConversation {
		user = appendContext(input, promptCtx)
	}
	return system, user
}

// BuildMessages は会話履歴と新しい入力からLLMへ送るメッセージ列を構築する。
// 履歴は時系列順のままで、並べ替えや間引きは行わない。
func BuildMessages(history []anthropic.Message, input string, promptCtx PromptContext) []anthropic.Message {
	messages := make([]anthropic.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, anthropic.Message{
		Role:    "user",
		Content: appendContext(input, promptCtx),
	})
	return messages
}

// appendContext は既存エンティティ名をユーザーメッセージの末尾に付加する。
func appendContext(input string, promptCtx PromptContext) string {
	var parts []string
	if len(promptCtx.PeopleNames) > 0 {
		parts = append(parts, fmt.Sprintf("Known people: %s", strings.Join(promptCtx.PeopleNames, ", ")))
	}
	if len(promptCtx.EventNames) > 0 {
		parts = append(parts, fmt.Sprintf("Known dates: %s", strings.Join(promptCtx.EventNames, ", ")))
	}
	if len(parts) == 0 {
		return input
	}
	return input + "\n\n[" + strings.Join(parts, " / ") + "]"
}
