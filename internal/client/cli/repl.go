package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Add(ctx context.Context) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Stats(ctx context.Context) error
	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
	Diag(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: register, login, diag, exit"
	helpSignedIn  = "Available commands: add, edit [id], delete [id], (l)ist [text], show [id], sync, status, stats, " +
		"export json|csv|html|link [path], import <file|link>, diag, logout, exit"
)

// runREPL reads one command per line from in and dispatches it to a.
//
// Commands that need an argument prompt for it when it is omitted. Errors
// returned by handlers are ignored here; handlers report their own errors.
// The loop exits on EOF, on "exit" or "quit", or when ctx is cancelled.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("tea %s > ", statusFn()))

		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpSignedOut)
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "add":
			_ = a.Add(ctx)

		case "edit":
			_ = a.Edit(ctx, args)

		case "delete", "rm":
			_ = a.Delete(ctx, args)

		case "l", "list":
			_ = a.List(ctx, args)

		case "show":
			_ = a.Show(ctx, args)

		case "sync":
			_ = a.Sync(ctx)

		case "status":
			_ = a.Status(ctx)

		case "stats":
			_ = a.Stats(ctx)

		case "export":
			_ = a.Export(ctx, args)

		case "import":
			_ = a.Import(ctx, args)

		case "diag":
			_ = a.Diag(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}
