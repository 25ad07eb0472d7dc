package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/irsalhamdi/lms-client/api/weberr"
	"github.com/irsalhamdi/lms-client/core/auth"
	"github.com/irsalhamdi/lms-client/core/checkout"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/core/course"
	"github.com/irsalhamdi/lms-client/core/dashboard"
	"github.com/irsalhamdi/lms-client/core/enrollment"
	"github.com/irsalhamdi/lms-client/core/progress"
	"github.com/irsalhamdi/lms-client/core/upload"
	"github.com/sirupsen/logrus"
)

type command struct {
	args int
	run  func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":      {2, login},
	"logout":     {0, logout},
	"whoami":     {0, whoami},
	"courses":    {0, listCourses},
	"course":     {1, showCourse},
	"my-courses": {0, listMine},
	"enroll":     {1, enroll},
	"upload":     {2, uploadVideos},
	"checkout":   {2, buy},
	"progress":   {1, showProgress},
	"complete":   {2, complete},
	"dashboard":  {0, showDashboard},
}

func login(ctx context.Context, a *app, args []string) error {
	u, err := auth.NewService(a.client, a.tokens).Login(ctx, auth.Credentials{Email: args[0], Password: args[1]})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", u.Name, u.Role)
	return nil
}

func logout(ctx context.Context, a *app, args []string) error {
	if err := auth.NewService(a.client, a.tokens).Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func whoami(ctx context.Context, a *app, args []string) error {
	c, route := claims.Guard{Tokens: a.tokens}.Check("")
	if route != "" {
		a.navigate(route, nil)
		return nil
	}

	fmt.Fprintf(a.out, "%s\t%s\t%s\n", c.UserID, c.Email, c.Role)
	if !c.Expiry.IsZero() {
		fmt.Fprintf(a.out, "token expires %s\n", c.Expiry.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func listCourses(ctx context.Context, a *app, args []string) error {
	cs, err := course.NewService(a.client).List(ctx)
	if err != nil {
		return err
	}
	printCourses(a, cs)
	return nil
}

func listMine(ctx context.Context, a *app, args []string) error {
	if _, route := (claims.Guard{Tokens: a.tokens}).Check(claims.RoleInstructor); route != "" {
		a.navigate(route, nil)
		return nil
	}

	cs, err := course.NewService(a.client).ListMine(ctx)
	if err != nil {
		return err
	}
	printCourses(a, cs)
	return nil
}

func printCourses(a *app, cs []course.Course) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tINSTRUCTOR\tPRICE\tSTUDENTS\tLESSONS")
	for _, c := range cs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			c.ID, c.Title, c.Instructor.Name, price(c), c.TotalStudents, len(c.Lessons()))
	}
	tw.Flush()
}

func price(c course.Course) string {
	if c.Free() {
		return "free"
	}
	if c.FinalPrice() < c.Price {
		return fmt.Sprintf("%.2f (was %.2f)", c.FinalPrice(), c.Price)
	}
	return fmt.Sprintf("%.2f", c.Price)
}

func showCourse(ctx context.Context, a *app, args []string) error {
	c, err := course.NewService(a.client).Get(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s\n%s\nby %s, %s\n\n", c.Title, c.Description, c.Instructor.Name, price(c))

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, s := range c.Sections {
		fmt.Fprintf(tw, "%d. %s\t\t\n", s.Order, s.Title)
		for _, l := range s.Lessons {
			fmt.Fprintf(tw, "  %d.%d %s\t%s\t%s\n", s.Order, l.Order, l.Title, l.ID, minutes(l.Duration))
		}
	}
	return tw.Flush()
}

func minutes(seconds float64) string {
	return fmt.Sprintf("%d:%02d", int(seconds)/60, int(seconds)%60)
}

func enroll(ctx context.Context, a *app, args []string) error {
	c, err := course.NewService(a.client).Get(ctx, args[0])
	if err != nil {
		return err
	}

	e, err := enrollment.NewService(a.client).EnrollFree(ctx, c)
	if errors.Is(err, enrollment.ErrPaidCourse) {
		return fmt.Errorf("%w: run lmsctl checkout %s <form.json>", err, c.ID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Enrolled in %s on %s\n", c.Title, e.EnrolledAt.Local().Format("2006-01-02"))
	return nil
}

func uploadVideos(ctx context.Context, a *app, args []string) error {
	s := upload.New(upload.Config{
		CourseID:    args[0],
		Client:      a.client,
		Prober:      upload.FFProbe{Binary: a.cfg.Upload.FFProbe},
		Log:         a.log,
		MaxSize:     a.cfg.Upload.MaxSize,
		Concurrency: a.cfg.Upload.Concurrency,
		Interval:    a.cfg.Upload.Interval,
	})
	defer s.Close()

	staged, err := s.Admit(ctx, args[1:]...)
	if err != nil {
		fmt.Fprintf(a.out, "Some files were not accepted:\n%v\n", err)
	}
	if len(staged) == 0 {
		return errors.New("nothing to upload")
	}

	sum, err := s.UploadAll(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tTITLE\tDURATION\tSTATUS\tDETAIL")
	for _, v := range s.Videos() {
		detail := v.MediaURL
		if v.Status == upload.StatusFailed {
			detail = v.Err
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", v.Order, v.Title, minutes(v.Duration), v.Status, detail)
	}
	tw.Flush()

	if len(sum.Failed) > 0 {
		return fmt.Errorf("%d of %d uploads failed", len(sum.Failed), len(staged))
	}
	return nil
}

func buy(ctx context.Context, a *app, args []string) error {
	b, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading checkout form: %w", err)
	}

	var f checkout.Form
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decoding checkout form: %w", err)
	}

	c, err := course.NewService(a.client).Get(ctx, args[0])
	if err != nil {
		return err
	}

	seq := checkout.New(checkout.Config{
		Client:    a.client,
		Navigator: a,
		Log:       a.log,
		Currency:  a.cfg.Checkout.Currency,
		Delay:     a.cfg.Checkout.Delay,
	})

	fmt.Fprintf(a.out, "Paying %.2f %s for %s...\n", c.FinalPrice(), a.cfg.Checkout.Currency, c.Title)

	_, err = seq.Submit(ctx, c, f)
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		for field, msg := range verr.Fields {
			fmt.Fprintf(a.out, "  %s: %s\n", field, msg)
		}
		return errors.New("checkout form is invalid")
	}
	return err
}

// Navigate reports the outcome of a checkout.
func (a *app) Navigate(route string, state interface{}) {
	switch st := state.(type) {
	case checkout.Result:
		fmt.Fprintf(a.out, "Payment succeeded, transaction %s\n", st.TransactionID)
	case checkout.Failed:
		fmt.Fprintf(a.out, "Payment failed: %s\n", st.Message)
	default:
		a.navigate(route, state)
	}
}

func showProgress(ctx context.Context, a *app, args []string) error {
	snap, err := progress.New(progress.Config{Client: a.client, Log: a.log}).Load(ctx, args[0])
	if err != nil {
		return err
	}
	printSnapshot(a, snap)
	return nil
}

func complete(ctx context.Context, a *app, args []string) error {
	courseID, lessonID := args[0], args[1]

	c, err := course.NewService(a.client).Get(ctx, courseID)
	if err != nil {
		return err
	}

	w := progress.Watch{LessonID: lessonID, TotalLessons: len(c.Lessons())}
	for _, l := range c.Lessons() {
		if l.ID == lessonID {
			w.Duration = l.Duration
			w.WatchTime = l.Duration
		}
	}
	if len(args) > 2 {
		secs, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("watched seconds: %w", err)
		}
		w.WatchTime = secs
	}

	syncer := progress.New(progress.Config{Client: a.client, Log: a.log, Threshold: a.cfg.Progress.Threshold})
	if _, err := syncer.Load(ctx, courseID); err != nil {
		a.log.WithError(err).Warn("starting from empty progress")
	}

	var snap progress.Snapshot
	if w.Duration > 0 && len(args) > 2 {
		if !syncer.Leave(ctx, courseID, w) {
			fmt.Fprintln(a.out, "Not watched enough to complete the lesson")
		}
		snap = syncer.Provider().Snapshot(courseID)
	} else {
		snap = syncer.Complete(ctx, courseID, w)
	}

	printSnapshot(a, snap)
	if pending := syncer.Unsynced(); len(pending) > 0 {
		fmt.Fprintf(a.out, "Not saved on the server yet: %s\n", strings.Join(pending, ", "))
	}
	return nil
}

func printSnapshot(a *app, snap progress.Snapshot) {
	fmt.Fprintf(a.out, "Completed %.0f%% (%d lessons), %s watched\n",
		snap.CompletionPercentage, len(snap.CompletedLessons), minutes(snap.TotalTimeSpent))
}

func showDashboard(ctx context.Context, a *app, args []string) error {
	d, err := dashboard.NewService(a.client, a.log).Dashboard(ctx)
	if err != nil {
		return err
	}

	st := d.Stats
	fmt.Fprintf(a.out, "Enrolled %d, completed %d, in progress %d, average %.0f%%, %.1f hours of video\n",
		st.EnrolledCourses, st.CompletedCourses, st.InProgressCourses, st.AverageProgress, st.TotalHours)
	if d.Computed {
		fmt.Fprintln(a.out, "(computed locally, the dashboard service is unavailable)")
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COURSE\tPROGRESS\tLAST SEEN")
	for _, e := range d.RecentCourses {
		fmt.Fprintf(tw, "%s\t%.0f%%\t%s\n", e.Course.Title, e.Progress, e.LastAccessedAt.Local().Format("2006-01-02"))
	}
	return tw.Flush()
}

func fieldsOf(err error) logrus.Fields {
	f, ok := weberr.Fields(err)
	if !ok {
		return logrus.Fields{}
	}
	return logrus.Fields(f)
}
