// Command gpioledctl drives a running gpioled node and mints API tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/nerrad567/gpioled/internal/auth"
	"github.com/nerrad567/gpioled/internal/chardev"
	"github.com/nerrad567/gpioled/internal/led"
)

const defaultNode = "/run/gpioled/led"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gpioledctl: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "gpioledctl",
		Usage: "control a gpioled device node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "node",
				Aliases: []string{"n"},
				Value:   defaultNode,
				EnvVars: []string{"GPIOLED_NODE"},
				Usage:   "path of the device `NODE`",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: chardev.DefaultReplyTimeout,
				Usage: "how long to wait for the device to answer",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "on",
				Usage:  "switch the LED on",
				Action: namedCommand("on"),
			},
			{
				Name:   "off",
				Usage:  "switch the LED off",
				Action: namedCommand("off"),
			},
			{
				Name:      "send",
				Usage:     "write one raw control byte",
				ArgsUsage: "<byte>",
				Action:    sendCommand,
			},
			{
				Name:  "token",
				Usage: "print an API access token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "subject",
						Required: true,
						Usage:    "who the token is issued to",
					},
					&cli.StringFlag{
						Name:  "role",
						Value: string(auth.RoleViewer),
						Usage: "viewer, operator or admin",
					},
					&cli.StringFlag{
						Name:    "secret",
						EnvVars: []string{"GPIOLED_JWT_SECRET"},
						Usage:   "HMAC signing secret shared with the daemon",
					},
					&cli.IntFlag{
						Name:  "ttl",
						Value: auth.DefaultAccessTokenTTL,
						Usage: "token lifetime in minutes",
					},
				},
				Action: tokenCommand,
			},
		},
	}
}

func namedCommand(name string) cli.ActionFunc {
	return func(c *cli.Context) error {
		control, err := led.ParseCommand(name)
		if err != nil {
			return err
		}
		if err := write(c, control); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: %s\n", c.String("node"), name)
		return nil
	}
}

// sendCommand writes the byte given as the only argument, in decimal, 0x
// hex or 0o octal.
func sendCommand(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("send takes exactly one byte")
	}
	control, err := parseByte(c.Args().First())
	if err != nil {
		return err
	}
	if err := write(c, control); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: wrote %#02x\n", c.String("node"), control)
	return nil
}

// tokenCommand prints a signed access token for the API.
func tokenCommand(c *cli.Context) error {
	secret := c.String("secret")
	if secret == "" {
		return errors.New("a signing secret is required (--secret or GPIOLED_JWT_SECRET)")
	}
	token, err := auth.GenerateAccessToken(c.String("subject"), auth.Role(c.String("role")), secret, c.Int("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func write(c *cli.Context, control byte) error {
	timeout := c.Duration("timeout")
	ctx, cancel := context.WithTimeout(c.Context, timeout)
	defer cancel()

	client, err := chardev.Dial(ctx, c.String("node"))
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck // nothing to report after the write

	client.SetTimeout(timeout)
	if _, err := client.Write([]byte{control}); err != nil {
		return fmt.Errorf("writing %#02x: %w", control, err)
	}
	return nil
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q: %w", s, err)
	}
	return byte(v), nil
}
