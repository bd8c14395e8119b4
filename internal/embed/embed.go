// Package embed builds the rich messages the bot posts.
package embed

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// Colors used across the bot.
const (
	ColorError   = 0xFF0000
	ColorSuccess = 0x00FF00
	ColorInfo    = 0x0099FF
	ColorWarning = 0xFFA500
)

func build(color int, title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// Error is the standard failure embed.
func Error(description string) *discordgo.MessageEmbed {
	return build(ColorError, "❌ Error", description)
}

// Success is the standard confirmation embed.
func Success(title, description string) *discordgo.MessageEmbed {
	return build(ColorSuccess, title, description)
}

// Info is the standard neutral embed.
func Info(title, description string) *discordgo.MessageEmbed {
	return build(ColorInfo, title, description)
}

// Warning is used for notices about reduced or removed access.
func Warning(title, description string) *discordgo.MessageEmbed {
	return build(ColorWarning, title, description)
}
