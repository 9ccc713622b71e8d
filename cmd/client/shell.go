package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atinyakov/folio/internal/client/admin"
	"github.com/atinyakov/folio/internal/client/resume"
	"github.com/atinyakov/folio/internal/client/storage"
	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
	"go.uber.org/zap"
)

const helpText = `Available commands:
  login | logout | whoami
  show                               load and print the whole site
  get <path>                         e.g. get /resume/skills
  put <path> <json>                  replace a record or document
  delete <path>                      delete a record
  reorder <collection> <id>...       e.g. reorder certificates 3 1 2
  upload <profile|settings> <field> <file>
  resume-move <from> <to>            move a resume section and save the order
  contact                            send a visitor message
  messages | read <id> | read-all | delete-message <id>
  exit`

// repl runs the interactive shell loop. Pushed notifications are printed
// as they arrive.
func (a *app) repl(ctx context.Context, in io.Reader, out io.Writer) {
	if a.session.Restore() {
		fmt.Fprintf(out, "Restored session for %s\n", a.session.CurrentUser().Email)
	}

	a.feed.OnMessage = func(m models.Message) {
		fmt.Fprintf(out, "\n[new message] %s: %s\n", m.Name, m.Message)
	}
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := a.feed.Listen(listenCtx, a.channel); err != nil {
			a.log.Warn("notifications stopped", zap.Error(err))
		}
	}()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "folio> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			fmt.Fprintln(out, "Bye")
			return
		}
		if err := a.run(ctx, in, out, args); err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
	}
}

func (a *app) run(ctx context.Context, in io.Reader, out io.Writer, args []string) error {
	switch args[0] {
	case "help":
		fmt.Fprintln(out, helpText)
	case "login":
		creds := storage.PromptCredentials(in, out)
		res := a.session.Login(ctx, creds.Email, creds.Password)
		fmt.Fprintln(out, res.Message)
	case "logout":
		a.session.Logout(ctx)
		fmt.Fprintln(out, "Logged out")
	case "whoami":
		if u := a.session.CurrentUser(); u != nil {
			fmt.Fprintf(out, "%s <%s> (%s)\n", u.Name, u.Email, u.Role)
		} else {
			fmt.Fprintln(out, "Not logged in")
		}
	case "show":
		return a.show(ctx, out)
	case "get", "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s <path>", args[0])
		}
		ep, err := resource.Parse(args[1])
		if err != nil {
			return err
		}
		var env *models.Envelope
		if args[0] == "delete" {
			env, err = a.api.Delete(ctx, ep)
		} else {
			env, err = a.api.Get(ctx, ep)
		}
		if err != nil {
			return err
		}
		return printEnvelope(out, env)
	case "put":
		if len(args) < 3 {
			return fmt.Errorf("usage: put <path> <json>")
		}
		ep, err := resource.Parse(args[1])
		if err != nil {
			return err
		}
		body := json.RawMessage(strings.Join(args[2:], " "))
		if !json.Valid(body) {
			return fmt.Errorf("body is not valid JSON")
		}
		env, err := a.api.Put(ctx, ep, body)
		if err != nil {
			return err
		}
		return printEnvelope(out, env)
	case "reorder":
		return a.reorder(ctx, out, args[1:])
	case "upload":
		return a.upload(ctx, out, args[1:])
	case "resume-move":
		return a.resumeMove(ctx, out, args[1:])
	case "contact":
		return a.contact(ctx, in, out)
	case "messages":
		if err := a.feed.Fetch(ctx); err != nil {
			return err
		}
		printMessages(out, a.feed.Messages(), a.feed.Unread())
	case "read":
		if len(args) < 2 {
			return fmt.Errorf("usage: read <id>")
		}
		if !a.feed.MarkRead(args[1]) {
			fmt.Fprintln(out, "Message not found")
		}
	case "read-all":
		a.feed.MarkAllRead()
	case "delete-message":
		if len(args) < 2 {
			return fmt.Errorf("usage: delete-message <id>")
		}
		return a.feed.Delete(ctx, args[1])
	default:
		fmt.Fprintln(out, "Unknown command. Type 'help' for a list of commands.")
	}
	return nil
}

// show loads the aggregate and prints it as JSON.
func (a *app) show(ctx context.Context, out io.Writer) error {
	agg, err := a.aggregate.Load(ctx)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))
	return nil
}

func (a *app) reorder(ctx context.Context, out io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: reorder <collection> <id>...")
	}
	res, ok := resource.ByName(args[0])
	if !ok || !res.IsCollection() {
		return fmt.Errorf("%s is not a collection", args[0])
	}
	col := admin.NewCollection(a.api, res, recordID, a.log)
	if err := col.Load(ctx); err != nil {
		return err
	}
	if err := col.Reorder(ctx, args[1:]); err != nil {
		return err
	}
	for i, item := range col.Items() {
		fmt.Fprintf(out, "%d. %s\n", i+1, recordID(item))
	}
	return nil
}

func recordID(m map[string]any) string {
	if v, ok := m["id"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func (a *app) upload(ctx context.Context, out io.Writer, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: upload <profile|settings> <field> <file>")
	}
	res, ok := resource.ByName(args[0])
	if !ok || (res != resource.Profile && res != resource.Settings) {
		return fmt.Errorf("uploads go to profile or settings")
	}
	f, err := os.Open(args[2])
	if err != nil {
		return err
	}
	defer f.Close()

	doc := admin.NewDocument[map[string]any](a.api, res, a.log)
	if err := doc.Load(ctx); err != nil {
		return err
	}
	updated, err := doc.Upload(ctx, args[1], filepath.Base(args[2]), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s = %v\n", args[1], updated[args[1]])
	return nil
}

func (a *app) resumeMove(ctx context.Context, out io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: resume-move <from> <to>")
	}
	from, err1 := strconv.Atoi(args[0])
	to, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return fmt.Errorf("positions must be numbers")
	}
	agg, err := a.aggregate.Load(ctx)
	if err != nil {
		return err
	}
	order, err := resume.Move(resume.OrderOf(agg.Resume), from, to)
	if err != nil {
		return err
	}
	if err := resume.SaveOrder(ctx, a.api, order); err != nil {
		return err
	}
	if _, err := a.aggregate.Refresh(ctx, resource.Resume); err != nil {
		return err
	}
	fmt.Fprintln(out, "Resume order:", strings.Join(order, ", "))
	return nil
}

func (a *app) contact(ctx context.Context, in io.Reader, out io.Writer) error {
	msg := storage.PromptContact(in, out)
	env, err := a.api.Post(ctx, resource.At(resource.Contact), msg)
	if err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("%s", env.Message)
	}
	if a.local != nil {
		// Mock mode has no server to push the event.
		_ = a.local.Publish(ctx, models.NewMessageEvent{
			SenderName:  msg.Name,
			SenderEmail: msg.Email,
			Message:     msg.Message,
		})
	}
	fmt.Fprintln(out, "Message sent")
	return nil
}

func printEnvelope(out io.Writer, env *models.Envelope) error {
	if !env.Success {
		return fmt.Errorf("%s", env.Message)
	}
	if len(env.Data) == 0 {
		fmt.Fprintln(out, "OK")
		return nil
	}
	var v any
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return err
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(out, string(b))
	return nil
}

func printMessages(out io.Writer, msgs []models.Message, unread int) {
	fmt.Fprintf(out, "%d messages, %d unread\n", len(msgs), unread)
	for _, m := range msgs {
		mark := " "
		if !m.Read {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s  %s <%s>: %s\n", mark, m.ID, m.Name, m.Email, m.Message)
	}
}
