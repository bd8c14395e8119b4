package bot

import "strings"

// Command is the closed set of chat commands the bot understands.
type Command int

const (
	CommandUnknown Command = iota
	CommandHelp
	CommandRegister
	CommandActivate
	CommandAddDuration
	CommandRemoveDuration
	CommandResetAccount
	CommandResetHWID
	CommandUserInfo
	CommandSetNote
	CommandListUsers
	CommandResetAllUsers
)

var commandNames = map[Command]string{
	CommandHelp:           "help",
	CommandRegister:       "register",
	CommandActivate:       "activate",
	CommandAddDuration:    "add-duration",
	CommandRemoveDuration: "remove-duration",
	CommandResetAccount:   "reset-account",
	CommandResetHWID:      "reset-hwid",
	CommandUserInfo:       "user-info",
	CommandSetNote:        "set-note",
	CommandListUsers:      "list-users",
	CommandResetAllUsers:  "reset-all-users",
}

var commandsByName = func() map[string]Command {
	m := make(map[string]Command, len(commandNames))
	for c, name := range commandNames {
		m[name] = c
	}
	return m
}()

// ParseCommand maps a command name, in any case, to its Command.
func ParseCommand(name string) Command {
	return commandsByName[strings.ToLower(name)]
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Permission is the level an actor needs to run a command.
type Permission int

const (
	// PermissionNone is checked by the server and channel gates only.
	PermissionNone Permission = iota
	// PermissionUser requires the allowed role, when one is configured.
	PermissionUser
	// PermissionAdmin requires admin rights.
	PermissionAdmin
)

// Permission returns what c requires.
func (c Command) Permission() Permission {
	switch c {
	case CommandHelp, CommandUnknown:
		return PermissionNone
	case CommandRegister:
		return PermissionUser
	case CommandActivate, CommandAddDuration, CommandRemoveDuration, CommandResetAccount,
		CommandResetHWID, CommandUserInfo, CommandSetNote, CommandListUsers, CommandResetAllUsers:
		return PermissionAdmin
	}
	return PermissionAdmin
}

// usage returns the usage hint of c for prefix.
func (c Command) usage(prefix string) string {
	var syntax, example string
	switch c {
	case CommandRegister:
		syntax, example = "register <email>", "register user@example.com"
	case CommandActivate:
		syntax, example = "activate <email> <durationDays>", "activate user@example.com 30"
	case CommandAddDuration:
		syntax, example = "add-duration <email> <days>", "add-duration user@example.com 30"
	case CommandRemoveDuration:
		syntax, example = "remove-duration <email> <days>", "remove-duration user@example.com 7"
	case CommandResetAccount:
		syntax, example = "reset-account <email>", "reset-account user@example.com"
	case CommandResetHWID:
		syntax, example = "reset-hwid <email>", "reset-hwid user@example.com"
	case CommandUserInfo:
		syntax, example = "user-info <email>", "user-info user@example.com"
	case CommandSetNote:
		syntax, example = "set-note <email> <note>", "set-note user@example.com Paid via PayPal"
	case CommandHelp, CommandListUsers, CommandResetAllUsers, CommandUnknown:
		return "Usage: `" + prefix + c.String() + "`"
	}
	return "Usage: `" + prefix + syntax + "`\nExample: `" + prefix + example + "`"
}
