// lmsctl drives the LMS backend from a terminal: log in, browse and buy
// courses, upload lecture videos and track progress.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/lms-client/api"
	"github.com/irsalhamdi/lms-client/config"
	"github.com/irsalhamdi/lms-client/core/token"
	"github.com/sirupsen/logrus"
)

var build = "develop"

const usage = `usage: lmsctl [flags] <command> [args]

commands:
  login <email> <password>      log in and store the token
  logout                        end the session and forget the token
  whoami                        show the logged in user
  courses                       list published courses
  course <id>                   show a course and its lessons
  my-courses                    list the courses you teach
  enroll <course-id>            enroll in a free course
  upload <course-id> <file>...  upload lecture videos to a course
  checkout <course-id> <form>   buy a course, form is a JSON file
  progress <course-id>          show your progress in a course
  complete <course-id> <lesson-id> [seconds]
                                mark a lesson as watched
  dashboard                     show your learning dashboard`

func main() {
	cfg := config.Client{Version: conf.Version{Build: build, Desc: "LMS command line client"}}

	help, err := config.Parse(config.ClientPrefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			fmt.Println(usage)
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := config.Logger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, log, cfg, os.Stdout); err != nil {
		log.WithFields(fieldsOf(err)).Error(err)
		os.Exit(1)
	}
}

// app is what every command works with.
type app struct {
	cfg    config.Client
	log    logrus.FieldLogger
	out    io.Writer
	tokens *token.Resolver
	client *api.Client
}

func Run(ctx context.Context, log logrus.FieldLogger, cfg config.Client, out io.Writer) error {
	name := cfg.Args.Num(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintln(out, usage)
		if name == "" {
			return nil
		}
		return fmt.Errorf("unknown command %q", name)
	}

	if err := os.MkdirAll(cfg.Storage.Dir, 0o700); err != nil {
		return fmt.Errorf("creating storage dir: %w", err)
	}

	tokens := token.NewResolver(
		token.NewFileStorage(filepath.Join(cfg.Storage.Dir, "local.json")),
		token.NewMemoryStorage(),
		log,
	)

	a := &app{cfg: cfg, log: log, out: out, tokens: tokens}

	client, err := api.New(api.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		Tokens:    tokens,
		Navigator: api.NavigatorFunc(a.navigate),
		Log:       log,
	})
	if err != nil {
		return err
	}
	a.client = client

	args := []string(cfg.Args)[1:]
	if len(args) < cmd.args {
		fmt.Fprintln(out, usage)
		return fmt.Errorf("%s needs %d argument(s)", name, cmd.args)
	}

	return cmd.run(ctx, a, args)
}

// navigate is where the client sends the user; on a terminal that means
// telling them what to do next.
func (a *app) navigate(route string, state interface{}) {
	switch route {
	case api.RouteLogin:
		fmt.Fprintln(a.out, "Your session has expired. Run: lmsctl login <email> <password>")
	case api.RouteUnauthorized:
		fmt.Fprintln(a.out, "Your account cannot access this.")
	default:
		a.log.WithField("route", route).Debug("navigate")
	}
}
