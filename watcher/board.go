package watcher

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var boardMark = color.New(color.FgYellow, color.Bold)

// WriteBoard prints the orders from the last fetch, newest first, one per line. Orders still
// inside their highlight window are marked with a star.
func (p *Poller) WriteBoard(w io.Writer) error {
	orders := p.Orders()

	var b strings.Builder
	fmt.Fprintf(&b, "-- %d order(s) at %s --\n", len(orders), p.LastFetch().Local().Format("15:04:05"))
	for _, o := range orders {
		mark := "  "
		if p.Highlighted(o.ID) {
			mark = boardMark.Sprint("* ")
		}
		fmt.Fprintf(&b, "%s%s  %-20s %-4s %-9s %3d item(s)  $%.2f\n", mark,
			o.CreatedAt.Local().Format("15:04"), o.CustomerName, o.PaymentType, o.Status, o.TotalItems(), o.Subtotal)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (p *Poller) printBoard() {
	if p.board == nil {
		return
	}
	if err := p.WriteBoard(p.board); err != nil {
		p.log.Warn("WATCHER", "Failed to print order board: "+err.Error())
	}
}
