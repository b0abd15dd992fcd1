package main

import (
	"context"
	"fmt"

	"github.com/cloudhubibi/gtmchat/chatbot"
	"github.com/cloudhubibi/gtmchat/client"
)

type SendCommand struct {
	ChatServerURL    string `help:"The URL of the chat relay server." env:"CHAT_SERVER_URL" default:"http://localhost:3001"`
	QuickRepliesFile string `help:"A YAML file containing the welcome message and quick replies." env:"QUICK_REPLIES_FILE" default:""`
	QuickReply       bool   `help:"Treat the message as a quick-reply label."`
	LogLevel         string `help:"The log level to use." env:"LOG_LEVEL" default:"warn"`
	Message          string `arg:"" help:"The message to send."`
}

func (c SendCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	script, err := chatbot.LoadScriptFile(c.QuickRepliesFile)
	if err != nil {
		return err
	}
	session := chatbot.New(client.New(c.ChatServerURL), chatbot.Options{
		Script: script,
		Log:    log,
	})
	if c.QuickReply {
		err = session.SelectQuickReply(ctx, c.Message)
	} else {
		err = session.SendMessage(ctx, c.Message)
	}
	if err != nil {
		return err
	}
	msgs := session.Messages()
	fmt.Println(msgs[len(msgs)-1].Text)
	return nil
}
