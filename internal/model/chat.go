// Package model はギフト管理のドメインモデルを定義する。
package model

import "time"

// ChatSender はチャットメッセージの送信者種別を表す。
type ChatSender string

const (
	// SenderUser はユーザーからのメッセージ。
	SenderUser ChatSender = "user"
	// SenderAssistant はアシスタントからのメッセージ。
	SenderAssistant ChatSender = "assistant"
)

// ChatMessage はチャット画面で交換された1件のメッセージを表す。
// 永続化されないクライアント寄りのモデルで、会話コンテキストの構築にのみ使われる。
type ChatMessage struct {
	Text      string
	Sender    ChatSender
	Timestamp time.Time
}
