package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"peerlink/internal/analytics"
	"peerlink/internal/cache"
	"peerlink/internal/cmdlog"
	"peerlink/internal/config"
	"peerlink/internal/engage"
	"peerlink/internal/ingest"
	"peerlink/internal/jobs"
	"peerlink/internal/metrics"
	"peerlink/internal/model"
	"peerlink/internal/schedule"
	"peerlink/internal/store/sqlite"
	"peerlink/internal/theme"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "seed":
		cmdSeed()
	case "recommend":
		cmdRecommend()
	case "get":
		cmdGet()
	case "invalidate":
		cmdInvalidate()
	case "refresh":
		cmdRefresh()
	case "profile":
		cmdProfile()
	case "feedback":
		cmdFeedback()
	case "stats":
		cmdStats()
	case "serve":
		cmdServe()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: peerlink <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./peerlink.yaml")
	fmt.Println("  seed        Load users, follows, posts and interactions from a YAML file")
	fmt.Println("  recommend   Score and rank candidates for a user (no cache)")
	fmt.Println("  get         Serve recommendations through the cache")
	fmt.Println("  invalidate  Drop a user's cached recommendations")
	fmt.Println("  refresh     Recompute cached recommendations for one user or all")
	fmt.Println("  profile     Update a profile; interest or bio changes invalidate the cache")
	fmt.Println("  feedback    Record a reaction to a recommendation")
	fmt.Println("  stats       Show hourly feedback counts")
	fmt.Println("  serve       Run the periodic refresh job and the metrics endpoint")
}

func fail(err error) {
	fmt.Println("error:", err)
	os.Exit(1)
}

// setup loads config and opens the stores; a non-empty dataPath is seeded first.
func setup(ctx context.Context, cfgPath, dataPath string) *app {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fail(err)
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		fail(err)
	}
	if dataPath != "" {
		if _, err := a.seed(ctx, dataPath); err != nil {
			a.Close()
			fail(err)
		}
	}
	return a
}

func cmdInit() {
	out := flag.NewFlagSet("init", flag.ExitOnError)
	path := out.String("path", "./peerlink.yaml", "path to write config")
	_ = out.Parse(os.Args[2:])
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		fail(err)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
}

func cmdSeed() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	cfgPath := fs.String("config", "./peerlink.yaml", "config path")
	file := fs.String("file", "", "dataset YAML file")
	_ = fs.Parse(os.Args[2:])
	if *file == "" {
		fail(fmt.Errorf("-file is required"))
	}
	ctx := context.Background()
	a := setup(ctx, *cfgPath, "")
	defer a.Close()
	err := cmdlog.Run("seed", func() error {
		st, err := a.seed(ctx, *file)
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d users, %d follows, %d posts, %d likes, %d comments\n", st.Users, st.Follows, st.Posts, st.Likes, st.Comments)
		return nil
	})
	if err != nil {
		fail(err)
	}
}

func cmdRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	cfgPath := fs.String("config", "./peerlink.yaml", "config path")
	data := fs.String("data", "", "optional dataset YAML to seed first")
	user := fs.String("user", "", "source user id")
	limit := fs.Int("limit", -1, "max results (default from config)")
	minScore := fs.Float64("min-score", -1, "minimum score (default from config)")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := setup(ctx, *cfgPath, *data)
	defer a.Close()
	if *limit < 0 {
		*limit = a.cfg.Recommend.DefaultLimit
	}
	if *minScore < 0 {
		*minScore = a.cfg.Recommend.DefaultMinScore
	}
	err := cmdlog.Run("recommend", func() error {
		cands, err := a.engine.Generate(ctx, *user, *limit, *minScore)
		if err != nil {
			return err
		}
		printCandidates(cands)
		return nil
	})
	if err != nil {
		fail(err)
	}
}

func cmdGet() {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	cfgPath := fs.String("config", "./peerlink.yaml", "config path")
	data := fs.String("data", "", "optional dataset YAML to seed first")
	user := fs.String("user", "", "source user id")
	limit := fs.Int("limit", -1, "max results (default from config)")
	noCache := fs.Bool("no-cache", false, "recompute instead of reading the cache")
	refreshOld := fs.Bool("refresh-if-old", true, "recompute when the cached set is stale")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := setup(ctx, *cfgPath, *data)
	defer a.Close()
	if *limit < 0 {
		*limit = a.cfg.Recommend.DefaultLimit
	}
	err := cmdlog.Run("get", func() error {
		recs, err := a.cache.Get(ctx, *user, cache.GetOptions{Limit: *limit, UseCache: !*noCache, RefreshIfOld: *refreshOld})
		if err != nil {
			return err
		}
		printRecords(recs)
		return nil
	})
	if err != nil {
		fail(err)
	}
}

func cmdInvalidate() {
	fs := flag.NewFlagSet("invalidate", flag.ExitOnError)
	cfgPath := fs.String("config", "./peerlink.yaml", "config path")
	user := fs.String("user", "", "user id")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := setup(ctx, *cfgPath, "")
	defer a.Close()
	if err := cmdlog.Run("invalidate", func() error { return a.cache.Invalidate(ctx, *user) }); err != nil {
		fail(err)
	}
	fmt.Println("Invalidated:", *user)
}

func cmdRefresh() {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	cfgPath := fs.String("config", "./peerlink.yaml", "config path")
	user := fs.String("user", "", "user id (omit with -all)")
	all := fs.Bool("all", false, "refresh every eligible user")
	limit := fs.Int("limit", -1, "results to print / keep (default from config)")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := setup(ctx, *cfgPath, "")
	defer a.Close()
	if *limit < 0 {
		*limit = a.cfg.Recommend.DefaultLimit
	}
	err := cmdlog.Run("refresh", func() error {
		if *all {
			sum, err := jobs.RefreshOnce(ctx, a.cache, a.data, jobs.NewLimiter(a.cfg.Refresh), *limit)
			if err != nil {
				return err
			}
			fmt.Printf("Refreshed %d users (%d failed)\n", sum.Refreshed, sum.Failed)
			return nil
		}
		recs, err := a.cache.Refresh(ctx, *user, *limit)
		if err != nil {
			return err
		}
		printRecords(recs)
		return nil
	})
	if err != nil {
		fail(err)
	}
}

func cmdProfile() {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	cfgPath := fs.String("config", "./peerlink.yaml", "config path")
	user := fs.String("user", "", "user id")
	interests := fs.String("interests", "", "comma-separated interests")
	bio := fs.String("bio", "", "bio text")
	location := fs.String("location", "", "location")
	occupation := fs.String("occupation", "", "occupation")
	visible := fs.Bool("visible", true, "show this user in recommendations")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := setup(ctx, *cfgPath, "")
	defer a.Close()
	err := cmdlog.Run("profile", func() error {
		u, err := a.data.Profile(ctx, *user)
		if err != nil && !model.IsNotFound(err) {
			return err
		}
		u.ID = *user
		if err != nil {
			u.Eligible = true
		}
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "interests":
				u.Interests = *interests
			case "bio":
				u.Bio = *bio
			case "location":
				u.Location = *location
			case "occupation":
				u.Occupation = *occupation
			case "visible":
				u.Eligible = *visible
			}
		})
		changed, err := ingest.ApplyProfileUpdate(ctx, a.data, a.cache, u)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %s (cache invalidated: %v)\n", u.ID, changed)
		return nil
	})
	if err != nil {
		fail(err)
	}
}

func cmdFeedback() {
	fs := flag.NewFlagSet("feedback", flag.ExitOnError)
	cfgPath := fs.String("config", "./peerlink.yaml", "config path")
	user := fs.String("user", "", "user who saw the recommendation")
	rec := fs.String("recommended", "", "recommended user id")
	action := fs.String("action", "", "viewed|profile_clicked|connected|dismissed|reported")
	text := fs.String("text", "", "optional comment")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := setup(ctx, *cfgPath, "")
	defer a.Close()
	err := cmdlog.Run("feedback", func() error {
		act, err := engage.ParseAction(*action)
		if err != nil {
			return err
		}
		return engage.Record(ctx, a.events, engage.Feedback{Source: *user, Recommended: *rec, Action: act, Text: *text})
	})
	if err != nil {
		fail(err)
	}
	fmt.Println("Feedback recorded")
}

func cmdStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", "./peerlink.yaml", "config path")
	since := fs.Duration("since", 24*time.Hour, "window to summarize")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := setup(ctx, *cfgPath, "")
	defer a.Close()
	db, ok := a.events.(*sqlite.DB)
	if !ok {
		fail(fmt.Errorf("stats needs the sqlite storage driver"))
	}
	now := time.Now().UTC()
	evs, err := db.LoadEventsRange(ctx, now.Add(-*since), now.Add(time.Second), engage.EventType)
	if err != nil {
		fail(err)
	}
	fbs := make([]engage.Feedback, 0, len(evs))
	for _, e := range evs {
		f, err := engage.Decode(e.Payload)
		if err != nil {
			continue
		}
		fbs = append(fbs, f)
	}
	b := analytics.HourlyFeedback(fbs)
	for _, k := range analytics.SortedBucketKeys(b) {
		fmt.Printf("%s -> %v\n", k.Format("2006-01-02 15:00"), b[k])
	}
	fmt.Printf("Dismiss rate: %.1f%% of %d\n", 100*analytics.DismissRate(fbs), len(fbs))
}

func cmdServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "./peerlink.yaml", "config path")
	data := fs.String("data", "", "optional dataset YAML to seed first")
	_ = fs.Parse(os.Args[2:])
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a := setup(ctx, *cfgPath, *data)
	defer a.Close()
	metrics.StartServer(a.cfg.Metrics.Addr)
	rc := a.cfg.Refresh
	theme.PrintBanner()
	fmt.Printf("Refreshing every %s; next window %s\n", rc.Interval, schedule.NextWindow(time.Now().UTC(), rc.QuietHours).Format(time.RFC3339))
	err := jobs.RefreshLoop(ctx, a.cache, a.data, jobs.NewLimiter(rc), a.cfg.Recommend.CacheDepth, rc.Interval, rc.QuietHours)
	if err != nil && ctx.Err() == nil {
		fail(err)
	}
}

func printCandidates(cs []model.Candidate) {
	if len(cs) == 0 {
		fmt.Println("No recommendations")
		return
	}
	for i, c := range cs {
		fmt.Printf("%2d. %-16s score=%.3f  %s\n", i+1, c.User.ID, c.Breakdown.Total, c.Reason)
		if len(c.Breakdown.MutualProfiles) > 0 {
			names := make([]string, 0, len(c.Breakdown.MutualProfiles))
			for _, m := range c.Breakdown.MutualProfiles {
				names = append(names, displayName(m))
			}
			fmt.Printf("    via %s\n", strings.Join(names, ", "))
		}
	}
}

func printRecords(recs []model.Record) {
	if len(recs) == 0 {
		fmt.Println("No recommendations")
		return
	}
	for i, r := range recs {
		fmt.Printf("%2d. %-16s score=%.3f  %s  (updated %s)\n", i+1, r.RecommendedUser, r.Score, r.Reason, r.UpdatedAt.Format(time.RFC3339))
	}
}

func displayName(u model.User) string {
	if n := u.FullName(); n != "" {
		return n
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.ID
}
