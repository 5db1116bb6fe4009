package domain

import (
	"fmt"
	"strings"
)

// Channel represents a delivery transport.
type Channel string

const (
	ChannelChat    Channel = "CHAT"
	ChannelEmail   Channel = "EMAIL"
	ChannelSMS     Channel = "SMS"
	ChannelSocial  Channel = "SOCIAL"
	ChannelWebhook Channel = "WEBHOOK"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelChat, ChannelEmail, ChannelSMS, ChannelSocial, ChannelWebhook:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Channels lists every supported delivery channel.
func Channels() []Channel {
	return []Channel{ChannelChat, ChannelEmail, ChannelSMS, ChannelSocial, ChannelWebhook}
}
