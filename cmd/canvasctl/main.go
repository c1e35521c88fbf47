package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canvas-studio/internal/apiclient"
	"canvas-studio/internal/editor"
	"canvas-studio/internal/models"
	"canvas-studio/internal/roomclient"

	"github.com/docopt/docopt-go"
)

const CanvasCtlVersion = "0.3.0"

const defaultAPIURL = "http://localhost:8080"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Canvas Studio control.

The ws_url defaults to the api_url; http(s) is mapped to ws(s).

Usage:
    canvasctl export <design_id> [--out=<file>]
        [--api_url=<api_url>] [--token=<token>]
    canvasctl add-shape <design_id> --shape=<kind>
        [--x=<x>] [--y=<y>] [--width=<w>] [--height=<h>] [--fill=<color>]
        [--api_url=<api_url>] [--ws_url=<ws_url>] [--token=<token>]
    canvasctl add-text <design_id> <text>
        [--x=<x>] [--y=<y>] [--size=<size>]
        [--api_url=<api_url>] [--ws_url=<ws_url>] [--token=<token>]
    canvasctl watch <design_id> [--duration=<d>]
        [--api_url=<api_url>] [--ws_url=<ws_url>] [--token=<token>]

Options:
    -h --help              Show this screen.
    --version              Show version.
    --api_url=<api_url>    Persistence API [default: http://localhost:8080].
    --ws_url=<ws_url>      Collaboration server.
    --token=<token>        Identity-provider bearer token.
    --out=<file>           Output file, defaults to the server-suggested name.
    --shape=<kind>         rectangle, circle or triangle.
    --x=<x>
    --y=<y>
    --width=<w>
    --height=<h>
    --fill=<color>
    --size=<size>          Font size.
    --duration=<d>         Stop watching after this long, e.g. 30s.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], CanvasCtlVersion)
	if err != nil {
		panic(err)
	}

	if export_, _ := opts.Bool("export"); export_ {
		exportDesign(opts)
	} else if addShape_, _ := opts.Bool("add-shape"); addShape_ {
		addShape(opts)
	} else if addText_, _ := opts.Bool("add-text"); addText_ {
		addText(opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts)
	}
}

func client(opts docopt.Opts) *apiclient.Client {
	apiURL, _ := opts.String("--api_url")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	token, _ := opts.String("--token")
	return apiclient.New(apiURL, token)
}

// dialer joins rooms with a token fetched from the API
func dialer(opts docopt.Opts, api *apiclient.Client) editor.Dialer {
	wsURL, _ := opts.String("--ws_url")
	if wsURL == "" {
		wsURL, _ = opts.String("--api_url")
	}
	if wsURL == "" {
		wsURL = defaultAPIURL
	}

	return func(ctx context.Context, room string) (editor.Room, error) {
		token, err := api.RoomToken(ctx, room)
		if err != nil {
			return nil, fmt.Errorf("failed to authorize room: %w", err)
		}
		conn, err := roomclient.Dial(ctx, wsURL, room, token)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

func open(ctx context.Context, opts docopt.Opts, onChange func(editor.View)) *editor.Session {
	designID, _ := opts.String("<design_id>")
	api := client(opts)

	session, err := editor.Open(ctx, editor.Options{
		DesignID: designID,
		Loader:   api,
		Saver:    api,
		Dial:     dialer(opts, api),
		OnChange: onChange,
	})
	if err != nil {
		Err.Printf("%s", err)
		os.Exit(1)
	}
	return session
}

func floatOpt(opts docopt.Opts, key string, fallback float64) float64 {
	if v, err := opts.Float64(key); err == nil {
		return v
	}
	return fallback
}

func exportDesign(opts docopt.Opts) {
	designID, _ := opts.String("<design_id>")
	out, _ := opts.String("--out")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	png, filename, err := client(opts).Export(ctx, designID, nil)
	if err != nil {
		Err.Printf("%s", err)
		os.Exit(1)
	}
	if out == "" {
		out = filename
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		Err.Printf("%s", err)
		os.Exit(1)
	}
	Out.Printf("%s (%d bytes)", out, len(png))
}

func addShape(opts docopt.Opts) {
	kind, _ := opts.String("--shape")

	el := models.NewShapeElement("", models.ShapeType(kind))
	el.X = floatOpt(opts, "--x", el.X)
	el.Y = floatOpt(opts, "--y", el.Y)
	el.Width = floatOpt(opts, "--width", el.Width)
	el.Height = floatOpt(opts, "--height", el.Height)
	if fill, _ := opts.String("--fill"); fill != "" {
		el.FillColor = fill
	}

	add(opts, el)
}

func addText(opts docopt.Opts) {
	text, _ := opts.String("<text>")

	el := models.NewTextElement("", text)
	el.X = floatOpt(opts, "--x", el.X)
	el.Y = floatOpt(opts, "--y", el.Y)
	el.FontSize = floatOpt(opts, "--size", el.FontSize)

	add(opts, el)
}

// add places el through an editor session so the room sees it live, then
// saves before leaving
func add(opts docopt.Opts, el models.Element) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session := open(ctx, opts, nil)
	defer session.Close()

	id, err := session.AddElement(el)
	if err != nil {
		Err.Printf("%s", err)
		os.Exit(1)
	}
	session.Flush(ctx)

	Out.Printf("%s", id)
}

func watch(opts docopt.Opts) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if durationStr, _ := opts.String("--duration"); durationStr != "" {
		d, err := time.ParseDuration(durationStr)
		if err != nil {
			Err.Printf("Invalid duration (%s).", err)
			os.Exit(1)
		}
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	session := open(ctx, opts, func(v editor.View) {
		synced := "synced"
		if !v.IsSynced {
			synced = "offline"
		}
		Out.Printf("%s %s: %d elements, %d others", time.Now().Format(time.TimeOnly), synced, len(v.Elements), len(v.Others))
		for _, o := range v.Others {
			cursor := "-"
			if o.Presence.Cursor != nil {
				cursor = fmt.Sprintf("(%.0f,%.0f)", o.Presence.Cursor.X, o.Presence.Cursor.Y)
			}
			Out.Printf("    %s %s cursor=%s", o.ConnectionID, o.User.Info.Name, cursor)
		}
	})
	defer session.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-ctx.Done():
	}
}
