package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vidshare/internal/domain"
	httpHandler "vidshare/internal/handler/http"
	"vidshare/internal/pipeline"
	"vidshare/internal/service"
	"vidshare/pkg/validator"
)

func newRecountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recount <video|comment|tweet|channel> <id>",
		Short: "Rebuild a denormalized like or subscriber counter from the relation set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, closeStore, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			toggles := service.NewToggleService(store, pipeline.NewExecutor(store, store), log)
			n, err := toggles.Recount(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d\n", args[0], args[1], n)
			return nil
		},
	}
}

// newUser is the input of the user create command. Accounts are managed by
// an external identity service in production; this seeds development data.
type newUser struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=30"`
	Fullname string `json:"fullname" validate:"max=100"`
	Avatar   string `json:"avatar" validate:"omitempty,mediaurl"`
}

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage development accounts",
	}

	var (
		in  newUser
		ttl time.Duration
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user and print a bearer token for it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Username = strings.ToLower(strings.TrimSpace(in.Username))
			if err := validator.New().Validate(&in); err != nil {
				return err
			}

			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, closeStore, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			now := time.Now().UTC()
			principal := domain.Principal{ID: uuid.NewString(), Username: in.Username}
			err = store.InsertOne(cmd.Context(), domain.CollectionUsers, domain.Document{
				domain.FieldID:               principal.ID,
				domain.FieldUsername:         in.Username,
				domain.FieldFullname:         in.Fullname,
				domain.FieldAvatar:           in.Avatar,
				domain.FieldCoverImage:       "",
				domain.FieldSubscribersCount: int64(0),
				domain.FieldCreatedAt:        now,
				domain.FieldUpdatedAt:        now,
			})
			if err != nil {
				return err
			}

			token, err := httpHandler.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Issue(principal, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:    %s\ntoken: %s\n", principal.ID, token)
			return nil
		},
	}
	create.Flags().StringVar(&in.Username, "username", "", "(required) unique username")
	create.Flags().StringVar(&in.Fullname, "fullname", "", "display name")
	create.Flags().StringVar(&in.Avatar, "avatar", "", "avatar URL")
	create.Flags().DurationVar(&ttl, "token-ttl", 24*time.Hour, "lifetime of the printed token")

	cmd.AddCommand(create)
	return cmd
}
