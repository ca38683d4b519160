package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tailored-agentic-units/shellpilot/core/protocol"
	"github.com/tailored-agentic-units/shellpilot/device"
	"github.com/tailored-agentic-units/shellpilot/kernel"
	"github.com/tailored-agentic-units/shellpilot/service"
)

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	blockStyle   = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color("8")).
			PaddingLeft(1)
)

func statusStyle(s kernel.Status) lipgloss.Style {
	switch s {
	case kernel.StatusComplete:
		return successStyle
	case kernel.StatusExceeded:
		return warnStyle
	default:
		return errorStyle
	}
}

func renderOutcome(w io.Writer, resp *service.ExecuteResponse) {
	fmt.Fprintln(w, statusStyle(resp.Status).Render(string(resp.Status)))
	fmt.Fprintf(w, "%s %s  %s %d  %s %d\n",
		labelStyle.Render("conversation"), valueStyle.Render(resp.ConversationID),
		labelStyle.Render("iterations"), resp.Iterations,
		labelStyle.Render("commands"), resp.Commands,
	)

	if f := resp.Failure; f != nil {
		fmt.Fprintln(w, labelStyle.Render("executed:"), f.ExecutedCommand)
		fmt.Fprintln(w, labelStyle.Render("observed:"))
		fmt.Fprintln(w, blockStyle.Render(strings.TrimRight(f.ObservedOutput, "\n")))
		fmt.Fprintln(w, labelStyle.Render("expected:"), f.ExpectedBehavior)
		return
	}
	fmt.Fprintln(w, blockStyle.Render(resp.Detail))
}

func renderHistory(w io.Writer, id string, messages []protocol.Message) {
	fmt.Fprintln(w, headerStyle.Render("conversation "+id))
	for _, m := range messages {
		fmt.Fprintln(w, roleStyle(m.Role).Render(string(m.Role)))
		fmt.Fprintln(w, blockStyle.Render(m.Content))
	}
}

func roleStyle(r protocol.Role) lipgloss.Style {
	switch r {
	case protocol.RoleUser:
		return headerStyle
	case protocol.RoleAssistant:
		return successStyle
	default:
		return labelStyle
	}
}

func renderDevices(w io.Writer, devices []device.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(w, labelStyle.Render("no devices"))
		return
	}
	for _, d := range devices {
		auth := "password"
		if d.PrivateKey != "" {
			auth = "key"
		}
		fmt.Fprintf(w, "%s  %s@%s  %s\n",
			headerStyle.Render(d.ID),
			d.Username, d.Addr(),
			labelStyle.Render(auth),
		)
	}
}
