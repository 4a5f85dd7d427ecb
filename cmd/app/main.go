package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	sqlitedb "github.com/atvirokodosprendimai/dicomindex/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/dicomindex/internal/adapters/dicomfile"
	"github.com/atvirokodosprendimai/dicomindex/internal/adapters/thumbs"
	"github.com/atvirokodosprendimai/dicomindex/internal/application"
	"github.com/atvirokodosprendimai/dicomindex/internal/domain"
	"github.com/atvirokodosprendimai/dicomindex/internal/storage"
	"github.com/atvirokodosprendimai/dicomindex/internal/watch"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "dicomindex",
		Usage: "Local DICOM object index and file store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db-path", Value: "dicomindex.db", Usage: "sqlite database file, or :memory:"},
			&cli.StringFlag{Name: "data-root", Usage: "object store root (default: database directory)"},
			&cli.StringFlag{Name: "thumbnail-cmd", Usage: "external command invoked as CMD <object> <thumbnail>"},
			&cli.BoolFlag{Name: "debug", Usage: "development logging"},
		},
		Commands: []*cli.Command{
			importCommand(),
			patientsCommand(),
			studiesCommand(),
			seriesCommand(),
			filesCommand(),
			valueCommand(),
			headerCommand(),
			removeCommand(),
			cleanupCommand(),
			watchCommand(),
			infoCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

type env struct {
	db      *sqlitedb.Database
	service *application.IndexService
	log     *zap.SugaredLogger
}

func openEnv(c *cli.Command) (*env, error) {
	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return nil, err
	}

	dbPath := c.String("db-path")
	db := sqlitedb.New(dbPath)

	fresh := db.IsInMemory()
	if !fresh {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			fresh = true
		}
	}

	if err := db.Open(); err != nil {
		return nil, err
	}
	if fresh {
		if err := db.Initialize(); err != nil {
			return nil, err
		}
	}

	dataRoot := c.String("data-root")
	if dataRoot == "" {
		dataRoot = db.Directory()
	}

	repo := sqlitedb.NewIndexRepository(db)
	store := storage.NewStore(dataRoot)
	service := application.NewIndexService(db, repo, store, dicomfile.NewParser(), logger)

	if cmd := c.String("thumbnail-cmd"); cmd != "" {
		service.SetThumbnailGenerator(thumbs.NewCommandGenerator(cmd))
	}

	return &env{db: db, service: service, log: logger}, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		e.log.Warnw("closing database failed", "error", err)
	}
	_ = e.log.Sync()
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error
	if debug {
		cfg := zap.NewDevelopmentConfig()
		logger, err = cfg.Build()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger.Sugar(), nil
}

func insertOptions(c *cli.Command) domain.InsertOptions {
	opts := domain.DefaultInsertOptions()
	if c.Bool("no-store") {
		opts.StoreFile = false
	}
	if c.Bool("no-thumbnail") {
		opts.GenerateThumbnail = false
	}
	if c.Bool("no-hierarchy") {
		opts.CreateHierarchy = false
	}
	opts.DestinationDir = c.String("dest")
	return opts
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Index DICOM files",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-store", Usage: "index only, do not copy files into the store"},
			&cli.BoolFlag{Name: "no-thumbnail", Usage: "skip thumbnail generation"},
			&cli.BoolFlag{Name: "no-hierarchy", Usage: "fail instead of creating missing patient/study/series rows"},
			&cli.StringFlag{Name: "dest", Usage: "alternative object store root for this import"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			files := c.Args().Slice()
			if len(files) == 0 {
				return errors.New("at least one file is required")
			}
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			opts := insertOptions(c)
			imported := 0
			for _, file := range files {
				if err := e.service.Insert(ctx, domain.ObjectSource{Path: file}, opts); err != nil {
					return fmt.Errorf("import %s: %w", file, err)
				}
				imported++
			}
			fmt.Printf("imported %d file(s)\n", imported)
			return nil
		},
	}
}

func patientsCommand() *cli.Command {
	return &cli.Command{
		Name:  "patients",
		Usage: "List indexed patients",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			patients, err := e.service.Patients(ctx)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(patients)
			}
			printPatients(patients)
			return nil
		},
	}
}

func studiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "studies",
		Usage: "List studies of a patient",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "patient", Required: true, Usage: "PatientID"},
			&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			studies, err := e.service.StudiesForPatient(ctx, c.String("patient"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(studies)
			}
			printStudies(studies)
			return nil
		},
	}
}

func seriesCommand() *cli.Command {
	return &cli.Command{
		Name:  "series",
		Usage: "List series of a study",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "study", Required: true, Usage: "StudyInstanceUID"},
			&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			series, err := e.service.SeriesForStudy(ctx, c.String("study"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(series)
			}
			printSeries(series)
			return nil
		},
	}
}

func filesCommand() *cli.Command {
	return &cli.Command{
		Name:  "files",
		Usage: "List stored files of a series",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "series", Required: true, Usage: "SeriesInstanceUID"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			files, err := e.service.FilesForSeries(ctx, c.String("series"))
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("no results")
				return nil
			}
			for _, file := range files {
				fmt.Println(file)
			}
			return nil
		},
	}
}

func valueCommand() *cli.Command {
	return &cli.Command{
		Name:  "value",
		Usage: "Look up a recorded tag value for an instance",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "instance", Usage: "SOPInstanceUID"},
			&cli.StringFlag{Name: "file", Usage: "stored file path (alternative to --instance)"},
			&cli.StringFlag{Name: "tag", Required: true, Usage: "tag key as GGGG,EEEE"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			var value string
			switch {
			case c.String("instance") != "":
				value, err = e.service.InstanceValue(ctx, c.String("instance"), c.String("tag"))
			case c.String("file") != "":
				value, err = e.service.FileValue(ctx, c.String("file"), c.String("tag"))
			default:
				return errors.New("either --instance or --file is required")
			}
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	}
}

func headerCommand() *cli.Command {
	return &cli.Command{
		Name:  "header",
		Usage: "Load and dump the full header of an instance or file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "instance", Usage: "SOPInstanceUID"},
			&cli.StringFlag{Name: "file", Usage: "DICOM file path (alternative to --instance)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			switch {
			case c.String("instance") != "":
				err = e.service.LoadInstanceHeader(ctx, c.String("instance"))
			case c.String("file") != "":
				err = e.service.LoadFileHeader(c.String("file"))
			default:
				return errors.New("either --instance or --file is required")
			}
			if err != nil {
				return err
			}

			rows := make([][2]string, 0)
			for _, key := range e.service.HeaderKeys() {
				rows = append(rows, [2]string{key, e.service.HeaderValue(key)})
			}
			printKV(rows)
			return nil
		},
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:  "remove",
		Usage: "Remove indexed objects, their files and thumbnails",
		Commands: []*cli.Command{
			{
				Name:      "series",
				ArgsUsage: "SERIES_UID",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runRemove(ctx, c, func(e *env, uid string) bool {
						return e.service.RemoveSeries(ctx, uid)
					})
				},
			},
			{
				Name:      "study",
				ArgsUsage: "STUDY_UID",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runRemove(ctx, c, func(e *env, uid string) bool {
						return e.service.RemoveStudy(ctx, uid)
					})
				},
			},
			{
				Name:      "patient",
				ArgsUsage: "PATIENT_ID",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runRemove(ctx, c, func(e *env, uid string) bool {
						return e.service.RemovePatient(ctx, uid)
					})
				},
			},
		},
	}
}

func runRemove(_ context.Context, c *cli.Command, remove func(*env, string) bool) error {
	uid := c.Args().First()
	if uid == "" {
		return errors.New("a UID argument is required")
	}
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	if !remove(e, uid) {
		return fmt.Errorf("remove %s: target missing or file deletion incomplete", uid)
	}
	fmt.Println("removed")
	return nil
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Drop index rows whose files vanished and prune empty directories",
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()
			return e.service.Cleanup(ctx)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch an incoming directory and import dropped files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Required: true, Usage: "incoming directory"},
			&cli.BoolFlag{Name: "no-thumbnail", Usage: "skip thumbnail generation"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			watcher, err := watch.NewImportWatcher(e.service, insertOptions(c), e.log)
			if err != nil {
				return err
			}
			defer watcher.Close()

			if err := watcher.Watch(c.String("dir")); err != nil {
				return err
			}
			e.log.Infow("watching", "dir", c.String("dir"))

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show database status",
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			patients, err := e.service.Patients(ctx)
			if err != nil {
				return err
			}
			printKV([][2]string{
				{"database", e.db.Filename()},
				{"directory", e.db.Directory()},
				{"in_memory", fmt.Sprintf("%t", e.db.IsInMemory())},
				{"open", fmt.Sprintf("%t", e.db.IsOpen())},
				{"patients", fmt.Sprintf("%d", len(patients))},
			})
			return nil
		},
	}
}
