package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chriskillpack/ocrchat"
	"github.com/chriskillpack/ocrchat/chat"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var errNoFile = errors.New("no file given")

var consoleCMD = &cobra.Command{
	Use:   "console",
	Short: "Chat in the terminal",
	Long:  "Run the upload and extract chat in the terminal. Pick an action by number or name, quit with Ctrl-D.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		// Keep the log out of the transcript
		logger := log.New(io.Discard, "", 0)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logger = log.New(os.Stderr, "", log.LstdFlags)
		}
		app, _, db, err := initApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		rl, err := readline.New("> ")
		if err != nil {
			return err
		}
		defer func() {
			_ = rl.Close()
		}()

		store := chat.NewStore()
		s := store.Create()
		defer store.End(s.ID)

		c := &console{out: rl.Stdout()}
		ocrchat.Render(s, app.Start(s))
		c.print(s)

		for ctx.Err() == nil {
			var o ocrchat.Outcome
			if s.PendingAsk() != nil {
				rl.SetPrompt("file> ")
				line, err := rl.Readline()
				if err != nil { // io.EOF or interrupt
					return nil
				}
				rl.SetPrompt("> ")

				if expired, ok := app.ExpireAsk(s, time.Now()); ok {
					o = expired
				} else if f, err := readFile(strings.TrimSpace(line)); err != nil {
					o = app.UploadFailed(s, err)
				} else {
					o = app.Upload(s, f)
				}
			} else {
				line, err := rl.Readline()
				if err != nil {
					return nil
				}
				name, ok := c.action(s, strings.TrimSpace(line))
				if !ok {
					continue
				}
				if name == "quit" {
					return nil
				}
				o = app.Action(ctx, s, name)
			}

			ocrchat.Render(s, o)
			c.print(s)
		}
		return nil
	},
}

func init() {
	consoleCMD.Flags().BoolP("verbose", "v", false, "Log to stderr")
}

type console struct {
	out io.Writer

	printed int // messages of the transcript already shown
}

// print writes the messages posted since the last call.
func (c *console) print(s *chat.Session) {
	msgs := s.Messages()
	for _, m := range msgs[c.printed:] {
		fmt.Fprintln(c.out, m.Content)
		for _, el := range m.Elements {
			fmt.Fprintf(c.out, "  [%s %s, %d bytes]\n", el.Name, el.MIME, len(el.Content))
		}
		for i, a := range m.Actions {
			fmt.Fprintf(c.out, "  %d) %s\n", i+1, a.Label)
		}
	}
	c.printed = len(msgs)
}

// action maps a line of input onto the name of one of the offered actions.
func (c *console) action(s *chat.Session, line string) (string, bool) {
	if line == "" {
		return "", false
	}
	if line == "quit" || line == "exit" {
		return "quit", true
	}

	actions := s.Actions()
	if n, err := strconv.Atoi(line); err == nil {
		if n < 1 || n > len(actions) {
			fmt.Fprintf(c.out, "pick 1-%d\n", len(actions))
			return "", false
		}
		return actions[n-1].Name, true
	}
	for _, a := range actions {
		if strings.EqualFold(line, a.Name) {
			return a.Name, true
		}
	}
	fmt.Fprintf(c.out, "unknown action %q\n", line)
	return "", false
}

// readFile loads path as an upload. The declared type comes from the file
// extension, like a browser would send it.
func readFile(path string) (chat.File, error) {
	if path == "" {
		return chat.File{}, errNoFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return chat.File{}, err
	}

	return chat.File{
		Name: filepath.Base(path),
		Type: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data: data,
	}, nil
}
