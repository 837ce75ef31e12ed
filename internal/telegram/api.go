// Package telegram is the chat layer: it renders digests, runs the command
// conversations and turns button presses into letters.
package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxMessageRunes is Telegram's limit for one text message.
const MaxMessageRunes = 4096

// CallbackPrefix marks inline-button data that carries a control token.
const CallbackPrefix = "cl:"

// API is the subset of *tgbotapi.BotAPI the package uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// NewAPI connects to Telegram with token.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}
