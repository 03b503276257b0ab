package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/telamed/guestchat/internal/auth"
	"github.com/telamed/guestchat/internal/chatstore"
	"github.com/telamed/guestchat/internal/config"
	"github.com/telamed/guestchat/internal/domain"
	"github.com/telamed/guestchat/internal/exchange"
	"github.com/telamed/guestchat/internal/gateway"
	"github.com/telamed/guestchat/internal/repository/sqlite"
	"github.com/telamed/guestchat/internal/session"
	"github.com/telamed/guestchat/internal/upload"
)

// app wires the full client stack for one command invocation.
type app struct {
	cfg     *config.Config
	kv      *sqlite.Store
	manager *session.Manager
	chats   *chatstore.Store
	uploads *upload.Tracker
	exch    *exchange.Exchange
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	kv, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	tokens := auth.NewTokenStore(kv, log.Logger)
	gw := gateway.NewClient(cfg.API.BaseURL, cfg.API.Timeout, tokens, log.Logger)

	manager := session.NewManager(gw, kv, log.Logger)
	if err := manager.Initialize(ctx); err != nil {
		kv.Close()
		return nil, err
	}

	sess := manager.Session()
	chats := chatstore.New(gw, log.Logger, sess.SessionID, manager.Chats())
	uploads := upload.New(gw, log.Logger,
		upload.WithPollInterval(cfg.Upload.PollInterval),
		upload.WithMaxAttempts(cfg.Upload.MaxAttempts),
		upload.WithProgress(func(batchID string, percent int) {
			fmt.Printf("\rbatch %s: %d%%", batchID, percent)
		}),
	)
	exch := exchange.New(gw, chats, uploads, exchange.Options{
		Language:   cfg.Client.Language,
		Specialty:  cfg.Client.Specialty,
		ErrorReply: cfg.Client.ErrorReply,
	}, log.Logger)

	return &app{cfg: cfg, kv: kv, manager: manager, chats: chats, uploads: uploads, exch: exch}, nil
}

func (a *app) Close() {
	a.kv.Close()
}

// targetChat resolves the --chat flag, defaulting to the selected chat.
func (a *app) targetChat(chatID string) (string, error) {
	if chatID == "" {
		return a.chats.SelectedID(), nil
	}
	if err := a.chats.Select(chatID); err != nil {
		return "", err
	}
	return chatID, nil
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "guestchat",
		Short:         "Guest chat client for the telemedicine assistant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newChatsCmd(cfg),
		newNewCmd(cfg),
		newSendCmd(cfg),
		newRenameCmd(cfg),
		newDeleteCmd(cfg),
		newUploadCmd(cfg),
		newResetCmd(cfg),
		newChatCmd(cfg),
	)
	return root
}

func newChatsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List chats in the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			selected := a.chats.SelectedID()
			for _, chat := range a.chats.Chats() {
				marker := " "
				if chat.ID == selected {
					marker = "*"
				}
				fmt.Printf("%s %-36s  %-30s  %s\n", marker, chat.ID, chat.Title, chat.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newNewCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "new [title]",
		Short: "Create a new chat and select it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			title := strings.Join(args, " ")
			chatID, res := a.chats.CreateNewChat(cmd.Context(), title)
			if !res.Persisted {
				fmt.Println("warning: chat created locally but not yet persisted")
			}
			fmt.Printf("created chat %s\n", chatID)
			return nil
		},
	}
}

func newSendCmd(cfg *config.Config) *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send a message and print the assistant reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			target, err := a.targetChat(chatID)
			if err != nil {
				return err
			}
			return sendAndPrint(cmd.Context(), a, target, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "chat id (defaults to the selected chat)")
	return cmd
}

func sendAndPrint(ctx context.Context, a *app, chatID, message string) error {
	sess := a.manager.Session()
	if sess == nil {
		return domain.ErrNoSession
	}
	if err := a.exch.Send(ctx, sess.SessionID, chatID, message); err != nil {
		return err
	}
	messages := a.chats.Messages(chatID)
	if len(messages) > 0 {
		fmt.Printf("assistant: %s\n", messages[len(messages)-1].Content)
	}
	return nil
}

func newRenameCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <chat-id> <title...>",
		Short: "Rename a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.chats.UpdateTitle(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if !res.Applied {
				return domain.ErrInvalidChatID
			}
			if !res.Persisted {
				fmt.Println("warning: renamed locally but not yet persisted")
			}
			return nil
		},
	}
}

func newDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <chat-id>",
		Short: "Delete a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.chats.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !res.Persisted {
				fmt.Println("warning: deleted locally but not yet persisted")
			}
			fmt.Printf("selected chat is now %s\n", a.chats.SelectedID())
			return nil
		},
	}
}

func newUploadCmd(cfg *config.Config) *cobra.Command {
	var chatID, category string
	cmd := &cobra.Command{
		Use:   "upload <file...>",
		Short: "Upload files as one batch and track it to completion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			target, err := a.targetChat(chatID)
			if err != nil {
				return err
			}

			var files []upload.FileInput
			var handles []*os.File
			defer func() {
				for _, f := range handles {
					f.Close()
				}
			}()
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("opening %s: %w", path, err)
				}
				handles = append(handles, f)
				info, err := f.Stat()
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				files = append(files, upload.FileInput{
					Name:    filepath.Base(path),
					Size:    info.Size(),
					Content: f,
				})
			}

			result, err := a.uploads.SubmitBatch(cmd.Context(), target, files, domain.FileCategory(category))
			fmt.Println()
			for _, rej := range result.Rejected {
				fmt.Printf("rejected: %s\n", rej.Error())
			}
			if err != nil {
				return err
			}
			for _, file := range result.Files {
				fmt.Printf("uploaded: %s (%s)\n", file.Filename, file.FileID)
			}
			for _, failed := range result.Failed {
				fmt.Printf("failed: %s: %s\n", failed.Filename, failed.Reason)
			}
			fmt.Println("files are attached to your next message")
			return nil
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "chat id (defaults to the selected chat)")
	cmd.Flags().StringVar(&category, "category", string(domain.CategoryGeneral), "file category")
	return cmd
}

func newResetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the guest session and start a fresh one",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.manager.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("new session: %s\n", a.manager.Session().SessionID)
			return nil
		},
	}
}

func newChatCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return chatLoop(cmd.Context(), a)
		},
	}
}

func chatLoop(ctx context.Context, a *app) error {
	fmt.Println("type a message, or /new, /chats, /switch <id>, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if chat, ok := a.chats.Selected(); ok {
			fmt.Printf("[%s] > ", chat.Title)
		} else {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/new":
			chatID, _ := a.chats.CreateNewChat(ctx, "")
			fmt.Printf("created chat %s\n", chatID)
		case line == "/chats":
			for _, chat := range a.chats.Chats() {
				fmt.Printf("  %s  %s\n", chat.ID, chat.Title)
			}
		case strings.HasPrefix(line, "/switch "):
			if err := a.chats.Select(strings.TrimSpace(strings.TrimPrefix(line, "/switch "))); err != nil {
				fmt.Printf("cannot switch: %v\n", err)
			}
		default:
			if err := sendAndPrint(ctx, a, a.chats.SelectedID(), line); err != nil {
				fmt.Printf("cannot send: %v\n", err)
			}
		}
	}
}
