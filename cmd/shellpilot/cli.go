package main

import "github.com/alecthomas/kong"

// Globals are flags shared by every command.
type Globals struct {
	Config  string           `short:"c" type:"path" env:"SHELLPILOT_CONFIG" help:"TOML configuration file"`
	Server  string           `help:"Call a running server at this URL instead of executing in-process"`
	Verbose bool             `short:"v" help:"Log at debug level"`
	Version kong.VersionFlag `help:"Print version and exit"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Serve the assistant API"`
	Run     RunCmd     `cmd:"" help:"Execute a task on a device"`
	Chat    ChatCmd    `cmd:"" help:"Send one chat message"`
	History HistoryCmd `cmd:"" help:"Show a conversation"`
	Cancel  CancelCmd  `cmd:"" help:"Cancel the running request of a conversation on a server"`
	Device  DeviceCmd  `cmd:"" help:"Manage the device catalog"`
	Models  ModelsCmd  `cmd:"" help:"List models available to the configured producers"`
}

// ServeCmd runs the HTTP server.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides config)"`
}

// RunCmd executes a task against a device.
type RunCmd struct {
	Device       string `short:"d" required:"" help:"Device id"`
	Conversation string `short:"C" help:"Conversation id"`
	Task         string `arg:"" help:"Task description"`
}

// ChatCmd sends one chat turn.
type ChatCmd struct {
	Conversation string `short:"C" help:"Conversation id"`
	Message      string `arg:"" help:"Message to send"`
}

// HistoryCmd prints a conversation.
type HistoryCmd struct {
	Conversation string `arg:"" optional:"" help:"Conversation id"`
	JSON         bool   `help:"Print raw JSON"`
}

// CancelCmd cancels a request on a running server.
type CancelCmd struct {
	Conversation string `arg:"" optional:"" help:"Conversation id"`
}

// DeviceCmd groups catalog commands.
type DeviceCmd struct {
	Add    DeviceAddCmd    `cmd:"" help:"Add or replace a device"`
	List   DeviceListCmd   `cmd:"" help:"List devices"`
	Remove DeviceRemoveCmd `cmd:"" help:"Remove a device"`
}

// DeviceAddCmd adds a device.
type DeviceAddCmd struct {
	ID         string `arg:"" help:"Device id"`
	Host       string `required:"" help:"Host name or address"`
	Port       int    `help:"SSH port (default 22)"`
	User       string `short:"u" required:"" help:"Login user"`
	Password   string `env:"SHELLPILOT_DEVICE_PASSWORD" help:"Login password"`
	KeyFile    string `type:"existingfile" help:"Private key file"`
	Passphrase string `env:"SHELLPILOT_KEY_PASSPHRASE" help:"Private key passphrase"`
}

// DeviceListCmd lists devices.
type DeviceListCmd struct{}

// DeviceRemoveCmd removes a device.
type DeviceRemoveCmd struct {
	ID string `arg:"" help:"Device id"`
}

// ModelsCmd lists models.
type ModelsCmd struct{}

func kongVars() kong.Vars {
	return kong.Vars{
		"version": versionString(),
	}
}
