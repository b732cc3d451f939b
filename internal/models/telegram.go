package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage is a user-facing notification rendered for Telegram.
type TelegramMessage struct {
	Title string
	Body  string
	Host  string
	Time  time.Time
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
