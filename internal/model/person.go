// Package model はギフト管理のドメインモデルを定義する。
package model

import "time"

// Person は贈り物を贈る相手（家族・友人など）を表す。
type Person struct {
	ID           string
	UserID       string
	Name         string
	Relationship string
	Age          int
	Birthday     *time.Time
	Interests    []string // 入力順を保持する
	Address      string
	Notes        string // サニタイズ済み
	AIContext    *AIContext
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AIContext はAI支援登録の監査用コンテキストを表す。
// 元の自由入力文、パース結果のJSON、信頼度スコアを保持する。
// AIを使わず手動で登録された場合はnil。
type AIContext struct {
	RawInput   string  `json:"raw_input"`
	ParsedJSON string  `json:"parsed_json"`
	Confidence float64 `json:"confidence"`
}
