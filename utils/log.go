package utils

import (
	"context"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
)

type LogLevel string

const (
	Info  LogLevel = "INFO"
	Warn  LogLevel = "WARN"
	Error LogLevel = "ERROR"
)

// EmbedPoster is the part of the platform needed to post log embeds.
type EmbedPoster interface {
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
}

func getColor(level LogLevel) int {
	switch level {
	case Info:
		return 3066993 // Green
	case Warn:
		return 15105570 // Orange
	case Error:
		return 15158332 // Red
	default:
		return 3447003 // Blue
	}
}

// sendLog writes the entry to the process log and, when channelID is set, to the log channel.
func sendLog(p EmbedPoster, channelID string, level LogLevel, module, operation, extraInfo string) {
	log.Printf("[%s] %s %s: %s", module, level, operation, extraInfo)
	if p == nil || channelID == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: string(level) + " Log",
		Color: getColor(level),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Module", Value: module},
			{Name: "Operation", Value: operation},
			{Name: "Details", Value: truncate(extraInfo, 1024)},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := p.SendEmbed(ctx, channelID, embed); err != nil {
		log.Printf("[%s] failed to send log embed: %v", module, err)
	}
}

func truncate(s string, n int) string {
	if s == "" {
		return "-"
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func LogInfo(p EmbedPoster, channelID, module, operation, extraInfo string) {
	sendLog(p, channelID, Info, module, operation, extraInfo)
}

func LogWarn(p EmbedPoster, channelID, module, operation, extraInfo string) {
	sendLog(p, channelID, Warn, module, operation, extraInfo)
}

func LogError(p EmbedPoster, channelID, module, operation, extraInfo string) {
	sendLog(p, channelID, Error, module, operation, extraInfo)
}
