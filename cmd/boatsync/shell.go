package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	apperrors "boatsync/errors"
	"boatsync/messaging"
	"boatsync/notify"
	"boatsync/widget"
)

const helpText = `commands:
  filter <type|all>            reload the list for a boat type
  select <id>                  select a boat and follow it on the map
  edit <id> <field> <value>    stage a draft edit
  save                         submit all drafts
  refresh                      reload the current filter
  drafts                       list staged edits
  show                         print the list and the map
  stats                        bus subscriptions
  quit
`

// shell 行命令宿主，每行一条命令
type shell struct {
	list     *widget.ListController
	follower *widget.SelectionSynchronizer
	editor   *widget.EditReconciler
	toasts   *notify.Recorder
	bus      *messaging.Bus
}

// Run 读取命令直到 quit、输入结束或 ctx 取消
func (s *shell) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()

	fmt.Fprint(out, "> ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errs
			}
			if quit := s.exec(ctx, line, out); quit {
				return nil
			}
			fmt.Fprint(out, "> ")
		}
	}
}

func (s *shell) exec(ctx context.Context, line string, out io.Writer) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(out, helpText)
	case "filter":
		key := ""
		if len(args) > 0 && args[0] != "all" {
			key = args[0]
		}
		if err = s.list.SetFilter(ctx, key).Wait(); err == nil {
			fmt.Fprintf(out, "%d boats\n", len(s.list.Records()))
		}
	case "refresh":
		if err = s.list.Refresh(ctx).Wait(); err == nil {
			fmt.Fprintf(out, "%d boats\n", len(s.list.Records()))
		}
	case "select":
		if len(args) != 1 {
			err = apperrors.NewError(apperrors.ErrCodeInvalidInput, "usage: select <id>")
			break
		}
		if err = s.list.SelectRow(ctx, args[0]); err == nil {
			s.follower.Wait()
			s.printMap(out)
		}
	case "edit":
		if len(args) < 3 {
			err = apperrors.NewError(apperrors.ErrCodeInvalidInput, "usage: edit <id> <field> <value>")
			break
		}
		err = s.list.StageEdit(widget.FieldEdit{
			RecordID: args[0],
			Field:    args[1],
			Value:    strings.Join(args[2:], " "),
		})
		if err == nil {
			fmt.Fprintf(out, "%d staged\n", s.list.Drafts().Len())
		}
	case "save":
		err = s.editor.Submit(ctx)
		// 保存成功后的刷新是异步的，这里等待列表重新加载完成
		if err == nil {
			_ = s.list.Refresh(ctx).Wait()
		}
	case "drafts":
		for _, d := range s.list.Drafts().Snapshot() {
			fmt.Fprintf(out, "%s.%s = %v\n", d.RecordID, d.Field, d.Value)
		}
	case "show":
		s.printList(out)
		s.printMap(out)
	case "stats":
		stats := s.bus.Stats()
		for _, ch := range sortedChannels(stats.Subscriptions) {
			fmt.Fprintf(out, "%s: %d subscriptions\n", ch, stats.Subscriptions[ch])
		}
		fmt.Fprintf(out, "relay: %v\n", stats.RelayEnabled)
	default:
		err = apperrors.NewError(apperrors.ErrCodeInvalidInput, fmt.Sprintf("unknown command %q (try help)", cmd))
	}

	for _, t := range s.toasts.Drain() {
		fmt.Fprintf(out, "[%s] %s: %s\n", t.Variant, t.Title, t.Message)
	}
	if err != nil && !isToasted(cmd) {
		fmt.Fprintf(out, "error: %s\n", apperrors.MessageOf(err))
	}
	return false
}

// save 的错误已经以 Toast 形式输出
func isToasted(cmd string) bool { return cmd == "save" }

func (s *shell) printList(out io.Writer) {
	columns := s.list.Columns()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"Id"}
	for _, c := range columns {
		header = append(header, c.Label)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	selected := s.list.Selected()
	for _, r := range s.list.Records() {
		row := []string{r.ID}
		if r.ID == selected {
			row[0] = "*" + r.ID
		}
		for _, c := range columns {
			row = append(row, formatCell(c, r.Field(c.FieldName)))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()

	if err := s.list.Err(); err != nil {
		fmt.Fprintf(out, "list error: %s\n", apperrors.MessageOf(err))
	}
}

func (s *shell) printMap(out io.Writer) {
	if !s.follower.ShowMap() {
		if err := s.follower.Err(); err != nil {
			fmt.Fprintf(out, "map: %s\n", apperrors.MessageOf(err))
			return
		}
		fmt.Fprintln(out, "map: no boat selected")
		return
	}
	for _, m := range s.follower.Markers() {
		fmt.Fprintf(out, "map: %s @ %.4f, %.4f\n", s.follower.Selected(), m.Location.Latitude, m.Location.Longitude)
	}
}

func formatCell(c widget.Column, v any) string {
	if v == nil {
		return ""
	}
	switch c.Type {
	case widget.ColumnCurrency:
		if f, ok := v.(float64); ok {
			return fmt.Sprintf("$%.*f", c.MaximumFractionDigits, f)
		}
	case widget.ColumnNumber:
		if f, ok := v.(float64); ok {
			return fmt.Sprintf("%g", f)
		}
	}
	return fmt.Sprint(v)
}

// sortedChannels 用于稳定输出
func sortedChannels(counts map[messaging.Channel]int) []messaging.Channel {
	out := make([]messaging.Channel, 0, len(counts))
	for ch := range counts {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
