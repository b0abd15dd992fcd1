package main

import (
	"context"
	"fmt"

	"github.com/cloudhubibi/gtmchat"
)

type VersionCommand struct {
}

func (c VersionCommand) Run(ctx context.Context) (err error) {
	fmt.Println(gtmchat.Version)
	return nil
}
