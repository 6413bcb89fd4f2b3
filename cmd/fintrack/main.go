package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/export/sheets"
	"fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/services"
	"fintrack/internal/session"
	"fintrack/internal/stats"
	"fintrack/internal/storage"
)

const usage = `fintrack - personal finance tracker

Usage:
  fintrack <command> [flags]

Commands:
  login        -email -password            authenticate and store tokens
  register     -username -email -password  create an account
  logout                                   drop stored tokens
  status                                   show session and sync state
  tx list      [-month -year]              list transactions
  tx add       -type -amount -category -date [-desc]
  tx delete    -id
  categories                               list categories
  goals                                    list saving goals with progress
  goal add     -title -target [-desc]
  goal contribute -id -amount
  goal delete  -id
  dashboard    [-from -to]                 stats overview (defaults to this month)
  sync                                     pull datasets into the local mirror
  export                                   export transactions to Google Sheets
`

type app struct {
	cfg    *config.Config
	logger *log.Logger
	client *api.Client
	mirror *storage.Mirror
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	client, err := cli.NewAPIClient(logger, cfg, func() {
		fmt.Fprintln(os.Stderr, "Session expired. Run 'fintrack login' to sign in again.")
	})
	if err != nil {
		logger.Error("Failed to initialize API client", log.FieldError, err)
		os.Exit(1)
	}

	mirror := cli.InitMirror(logger, cfg.SQLiteDBPath)
	defer mirror.Close()

	a := &app{cfg: cfg, logger: logger, client: client, mirror: mirror}

	command := os.Args[1]
	args := os.Args[2:]
	if command == "tx" || command == "goal" {
		if len(args) == 0 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		command = command + " " + args[0]
		args = args[1:]
	}

	ctx, cancel := cli.CommandContext(cfg)
	defer cancel()

	if err := a.run(ctx, command, args); err != nil {
		fail(err)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "logout":
		return a.client.Logout()
	case "status":
		return a.status(ctx)
	case "tx list":
		return a.listTransactions(ctx, args)
	case "tx add":
		return a.addTransaction(ctx, args)
	case "tx delete":
		return a.deleteTransaction(ctx, args)
	case "categories":
		return a.listCategories(ctx)
	case "goals":
		return a.listGoals(ctx)
	case "goal add":
		return a.addGoal(ctx, args)
	case "goal contribute":
		return a.contribute(ctx, args)
	case "goal delete":
		return a.deleteGoal(ctx, args)
	case "dashboard":
		return a.dashboard(ctx, args)
	case "sync":
		return a.sync(ctx)
	case "export":
		return a.export(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
		return nil
	}
}

func fail(err error) {
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		// The expiry callback already told the user what to do.
	case session.IsValidation(err):
		var apiErr *session.APIError
		errors.As(err, &apiErr)
		fmt.Fprintf(os.Stderr, "Invalid input: %s\n", apiErr.FirstFieldMessage())
	case session.IsNetwork(err):
		fmt.Fprintln(os.Stderr, "Cannot reach the server. Check your connection and try again.")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)
	if *email == "" || *password == "" {
		return errors.New("login requires -email and -password")
	}
	if err := a.client.Login(ctx, *email, *password); err != nil {
		return err
	}
	fmt.Println("Logged in.")
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)
	if *username == "" || *email == "" || *password == "" {
		return errors.New("register requires -username, -email and -password")
	}
	user, err := a.client.Register(ctx, *username, *email, *password, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Account %q created. Run 'fintrack login' to sign in.\n", user.Username)
	return nil
}

func (a *app) status(ctx context.Context) error {
	if a.client.Authenticated() {
		fmt.Println("Session: active")
	} else {
		fmt.Println("Session: not logged in")
	}
	syncedAt, err := a.mirror.LastSyncedAt(ctx)
	if err != nil {
		return err
	}
	if syncedAt.IsZero() {
		fmt.Println("Mirror:  never synced")
	} else {
		fmt.Printf("Mirror:  synced %s\n", syncedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func (a *app) listTransactions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tx list", flag.ExitOnError)
	month := fs.Int("month", 0, "filter by month (1-12)")
	year := fs.Int("year", 0, "filter by year")
	fs.Parse(args)

	transactions, err := a.client.ListTransactions(ctx, api.TransactionFilter{Month: *month, Year: *year})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
	for _, t := range transactions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Date.Format("2006-01-02"), flowLabel(t.Flow),
			t.Amount.Decimal(), t.CategoryName, t.Description)
	}
	return w.Flush()
}

func (a *app) addTransaction(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tx add", flag.ExitOnError)
	flow := fs.String("type", "EX", "IN (income) or EX (expense)")
	amount := fs.String("amount", "", "amount, e.g. 12.50")
	category := fs.Int64("category", 0, "category id (see 'fintrack categories')")
	date := fs.String("date", time.Now().Format("2006-01-02"), "date (YYYY-MM-DD)")
	desc := fs.String("desc", "", "description")
	fs.Parse(args)

	money, err := core.ParseMoney(*amount)
	if err != nil {
		return fmt.Errorf("invalid -amount: %w", err)
	}
	day, err := parseDate(*date)
	if err != nil {
		return fmt.Errorf("invalid -date: %w", err)
	}

	created, err := a.client.CreateTransaction(ctx, core.Transaction{
		Flow:        core.Flow(*flow),
		Amount:      money,
		CategoryID:  *category,
		Date:        day,
		Description: *desc,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created transaction %d: %s %s on %s\n",
		created.ID, flowLabel(created.Flow), created.Amount.Decimal(),
		created.Date.Format("2006-01-02"))
	return nil
}

func (a *app) deleteTransaction(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tx delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "transaction id")
	fs.Parse(args)
	if *id == 0 {
		return errors.New("tx delete requires -id")
	}
	if err := a.client.DeleteTransaction(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("Deleted transaction %d\n", *id)
	return nil
}

func (a *app) listCategories(ctx context.Context) error {
	categories, err := a.client.ListCategories(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE")
	for _, c := range categories {
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, flowLabel(c.Flow))
	}
	return w.Flush()
}

func (a *app) listGoals(ctx context.Context) error {
	goals, err := a.client.ListGoals(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSAVED\tTARGET\tPROGRESS")
	for _, g := range goals {
		progress := "-"
		if p, err := stats.Progress(g); err == nil {
			progress = fmt.Sprintf("%d%%", p.Percent)
			if p.Complete {
				progress += " (complete)"
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			g.ID, g.Title, g.CurrentSaved.Decimal(), g.TargetAmount.Decimal(), progress)
	}
	return w.Flush()
}

func (a *app) addGoal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("goal add", flag.ExitOnError)
	title := fs.String("title", "", "goal title")
	target := fs.String("target", "", "target amount, e.g. 1000.00")
	desc := fs.String("desc", "", "description")
	fs.Parse(args)

	money, err := core.ParseMoney(*target)
	if err != nil {
		return fmt.Errorf("invalid -target: %w", err)
	}
	goal, err := a.client.CreateGoal(ctx, core.SavingGoal{
		Title:        *title,
		Description:  *desc,
		TargetAmount: money,
		IsActive:     true,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created goal %d: %s (target %s)\n", goal.ID, goal.Title, goal.TargetAmount.Decimal())
	return nil
}

func (a *app) contribute(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("goal contribute", flag.ExitOnError)
	id := fs.Int64("id", 0, "goal id")
	amount := fs.String("amount", "", "contribution amount")
	fs.Parse(args)

	money, err := core.ParseMoney(*amount)
	if err != nil {
		return fmt.Errorf("invalid -amount: %w", err)
	}

	goals, err := a.client.ListGoals(ctx)
	if err != nil {
		return err
	}
	var goal *core.SavingGoal
	for i := range goals {
		if goals[i].ID == *id {
			goal = &goals[i]
			break
		}
	}
	if goal == nil {
		return fmt.Errorf("no goal with id %d", *id)
	}

	updated, err := a.client.Contribute(ctx, *goal, money)
	if err != nil {
		return err
	}
	p, err := stats.Progress(updated)
	if err != nil {
		return err
	}
	fmt.Printf("Goal %q: %s of %s saved (%d%%)\n",
		updated.Title, updated.CurrentSaved.Decimal(), updated.TargetAmount.Decimal(), p.Percent)
	if p.Complete {
		fmt.Println("Goal reached!")
	}
	return nil
}

func (a *app) deleteGoal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("goal delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "goal id")
	fs.Parse(args)
	if *id == 0 {
		return errors.New("goal delete requires -id")
	}
	if err := a.client.DeleteGoal(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("Deleted goal %d\n", *id)
	return nil
}

func (a *app) dashboard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	fromArg := fs.String("from", "", "range start (YYYY-MM-DD), default first of this month")
	toArg := fs.String("to", "", "range end (YYYY-MM-DD), default today")
	fs.Parse(args)

	from, to, err := resolveRange(*fromArg, *toArg)
	if err != nil {
		return err
	}

	dash := services.NewDashboard(a.client, a.mirror)
	view, err := dash.Load(ctx, from, to)
	if err != nil {
		return err
	}

	fmt.Printf("Overview %s to %s\n", from.Format("2006-01-02"), to.Format("2006-01-02"))
	if view.Offline {
		synced := "never"
		if !view.LastSyncedAt.IsZero() {
			synced = view.LastSyncedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("(offline: showing local data, last synced %s)\n", synced)
	}
	fmt.Printf("  Income:  %s\n", view.Summary.TotalIncome.Decimal())
	fmt.Printf("  Expense: %s\n", view.Summary.TotalExpense.Decimal())
	fmt.Printf("  Balance: %s\n", view.Summary.Balance.Decimal())

	if len(view.ExpensePie) > 0 {
		fmt.Println("\nTop expenses:")
		for i, slice := range view.ExpensePie {
			if i == 5 {
				break
			}
			fmt.Printf("  %-20s %s\n", slice.CategoryName, slice.Value.Decimal())
		}
	}

	if view.Habits != nil {
		fmt.Printf("\nSpending habits: %s (%s takes %d%%)\n",
			view.Habits.Tier, view.Habits.DominantCategory, view.Habits.DominantPercent)
		for _, r := range view.Habits.Recommendations {
			fmt.Printf("  - %s\n", r)
		}
		if view.PotentialSaving.Cents > 0 {
			fmt.Printf("  Cutting %s by %d%% would save %s\n",
				view.Habits.DominantCategory, stats.DefaultCutPercent, view.PotentialSaving.Decimal())
		}
	}

	if len(view.Goals) > 0 {
		fmt.Println("\nSaving goals:")
		for _, g := range view.Goals {
			mark := ""
			if g.Progress.Complete {
				mark = " ✓"
			}
			fmt.Printf("  %-20s %3d%%  (%s / %s)%s\n",
				g.Goal.Title, g.Progress.Percent,
				g.Goal.CurrentSaved.Decimal(), g.Goal.TargetAmount.Decimal(), mark)
		}
	}
	return nil
}

func (a *app) sync(ctx context.Context) error {
	publisher := a.newPublisher()
	if c, ok := publisher.(*notify.Client); ok && c != nil {
		defer c.Close()
	}
	svc := services.NewSyncService(a.client, a.mirror, publisher)
	if err := svc.Sync(ctx); err != nil {
		return err
	}
	fmt.Println("Sync complete.")
	return nil
}

// newPublisher returns a typed-nil-free publisher: nil when AMQP is not
// configured or unreachable.
func (a *app) newPublisher() services.EventPublisher {
	if a.cfg.AMQPURL == "" {
		return nil
	}
	client, err := notify.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
	if err != nil {
		a.logger.Warn("AMQP unavailable, continuing without events", log.FieldError, err)
		return nil
	}
	return client
}

func (a *app) export(ctx context.Context) error {
	exporter, err := sheets.NewFromEnv(ctx)
	if err != nil {
		return err
	}
	transactions, err := a.client.ListTransactions(ctx, api.TransactionFilter{})
	if err != nil {
		if !session.IsNetwork(err) {
			return err
		}
		transactions, err = a.mirror.ListTransactions(ctx)
		if err != nil {
			return err
		}
	}
	if err := exporter.Export(ctx, transactions); err != nil {
		return err
	}
	fmt.Printf("Exported %d transactions.\n", len(transactions))
	return nil
}

func flowLabel(f core.Flow) string {
	if f == core.Income {
		return "income"
	}
	return "expense"
}

func parseDate(s string) (core.Date, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return core.Date{}, err
	}
	return core.Date{Time: t}, nil
}

func resolveRange(fromArg, toArg string) (core.Date, core.Date, error) {
	now := time.Now()
	from := core.NewDate(now.Year(), int(now.Month()), 1)
	to := core.NewDate(now.Year(), int(now.Month()), now.Day())

	var err error
	if fromArg != "" {
		if from, err = parseDate(fromArg); err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("invalid -from: %w", err)
		}
	}
	if toArg != "" {
		if to, err = parseDate(toArg); err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("invalid -to: %w", err)
		}
	}
	if to.Before(from.Time) {
		return core.Date{}, core.Date{}, errors.New("-to must not be before -from")
	}
	return from, to, nil
}
