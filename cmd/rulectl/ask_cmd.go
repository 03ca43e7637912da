package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/provisioning-sdk/modules/assistant"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/domain/entities/conversation"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/infrastructure/persistence"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/services"
	"github.com/iota-uz/provisioning-sdk/pkg/composables"
)

func newAskCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask TEXT...",
		Short: "Ask the provisioning assistant one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.conf.Assistant.Validate(); err != nil {
				return withCode(exitUsage, err)
			}
			asker, err := assistant.NewAsker(&g.conf)
			if err != nil {
				return withCode(exitUsage, err)
			}

			ctx := composables.WithLogger(cmd.Context(), g.logger.WithField("command", "ask"))
			chat := services.NewChatService(persistence.NewInmemConversationRepository(), asker)
			conv, err := chat.Create(ctx)
			if err != nil {
				return err
			}
			conv, err = chat.SendMessage(ctx, conv.ID(), strings.Join(args, " "))
			if err != nil {
				if errors.Is(err, conversation.ErrEmptyMessage) || errors.Is(err, conversation.ErrMessageTooLong) {
					return withCode(exitValidation, err)
				}
				return err
			}

			msgs := conv.Messages()
			reply := msgs[len(msgs)-1].Text()
			if reply == services.FallbackReply {
				return withCode(exitRemote, errors.New(reply))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), reply)
			return err
		},
	}
}
