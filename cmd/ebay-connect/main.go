package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"easyflip-backend/internal/application/connect"
	"easyflip-backend/internal/pkg/logging"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const usage = `
Connect an eBay seller account to EasyFlip from the terminal.

Usage:

ebay-connect [-f ENV_FILE] [-api URL] [-token ACCESS_TOKEN] [-timeout 2m] [-no-browser]

EASYFLIP_API_URL and EASYFLIP_ACCESS_TOKEN are read from the environment
(or the .env file) when the flags are not given.
`

func main() {
	var (
		showHelp  bool
		envFile   string
		apiURL    string
		token     string
		timeout   time.Duration
		noBrowser bool
	)
	flag.BoolVar(&showHelp, "h", false, "show help")
	flag.StringVar(&envFile, "f", ".env", "path to the .env file")
	flag.StringVar(&apiURL, "api", "", "EasyFlip API base URL")
	flag.StringVar(&token, "token", "", "Supabase access token")
	flag.DurationVar(&timeout, "timeout", connect.DefaultTimeout, "how long to wait for eBay sign-in")
	flag.BoolVar(&noBrowser, "no-browser", false, "print the sign-in URL instead of opening a browser")
	flag.Parse()

	if showHelp {
		fmt.Print(usage + "\n")
		return
	}

	logging.Setup("ebay-connect", os.Getenv("LOG_LEVEL"), "console", os.Stderr)

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Str("file", envFile).Msg("load env file")
	}
	if apiURL == "" {
		apiURL = os.Getenv("EASYFLIP_API_URL")
	}
	if token == "" {
		token = os.Getenv("EASYFLIP_ACCESS_TOKEN")
	}
	if apiURL == "" || token == "" {
		log.Fatal().Msg("API URL and access token are required (see -h)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opener connect.Opener = connect.OpenerFunc(openBrowser)
	if noBrowser {
		opener = connect.OpenerFunc(func(u string) error {
			fmt.Printf("Open this URL to sign in to eBay:\n\n  %s\n\n", u)
			return nil
		})
	}

	flow := &connect.Flow{
		API:     connect.NewClient(apiURL, token),
		Opener:  opener,
		Timeout: timeout,
		OnChange: func(s connect.State, e *connect.Error) {
			ev := log.Info().Str("state", string(s))
			if e != nil {
				ev = log.Warn().Str("state", string(s)).Str("class", string(e.Class))
			}
			ev.Msg("connect")
		},
	}

	err := flow.Start(ctx)
	if flow.State() == connect.StateTimedOut && ctx.Err() == nil {
		err = checkManually(ctx, flow)
	}
	if err != nil {
		var fe *connect.Error
		if errors.As(err, &fe) {
			fmt.Fprintln(os.Stderr, fe.Remediation())
		}
		log.Fatal().Err(err).Msg("eBay connection failed")
	}
	fmt.Println("eBay account connected.")
}

// checkManually lets the user retry the status check after the poll window closes.
func checkManually(ctx context.Context, flow *connect.Flow) error {
	fmt.Println("Still waiting on eBay. Finish signing in, then press Enter to check again (Ctrl-D to give up).")
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		state, err := flow.CheckOnce(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("status check failed")
			continue
		}
		switch state {
		case connect.StateConnected:
			return nil
		case connect.StateError:
			return flowErr(flow)
		}
		fmt.Println("Not connected yet. Press Enter to check again.")
	}
	return flowErr(flow)
}

func flowErr(flow *connect.Flow) error {
	if e := flow.Err(); e != nil {
		return e
	}
	return errors.New("not connected")
}

func openBrowser(u string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u)
	default:
		cmd = exec.Command("xdg-open", u)
	}
	return cmd.Start()
}
