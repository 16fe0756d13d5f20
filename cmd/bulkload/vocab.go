package main

import (
	"fmt"
	"io"
	"os"

	"github.com/poiesic/bulkload/config"
	"github.com/poiesic/bulkload/source"
	"github.com/poiesic/bulkload/vocab"
	"github.com/urfave/cli/v2"
)

func vocabCommand() *cli.Command {
	return &cli.Command{
		Name:   "vocab",
		Usage:  "Extract a query vocabulary from a text column",
		Action: vocabAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"f"},
				Usage:    "Path to the delimited input file (.gz is decompressed)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "column",
				Usage: "Text column to read words from",
				Value: vocab.DefaultColumn,
			},
			&cli.IntFlag{
				Name:  "min-words",
				Usage: "Stop reading once this many words are collected",
				Value: vocab.DefaultMinWords,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Word list destination, one word per line (- for stdout)",
				Value:   "-",
			},
			&cli.StringFlag{
				Name:  "delimiter",
				Usage: "Field delimiter",
				Value: ",",
			},
		},
	}
}

func vocabAction(c *cli.Context) error {
	f, err := loadFile(c)
	if err != nil {
		return err
	}

	delimStr := config.Value(f.Ingest.Delimiter, c.String("delimiter"))
	setString(c, "delimiter", &delimStr)
	delim, err := parseDelimiter(delimStr)
	if err != nil {
		return cli.Exit(err.Error(), exitAborted)
	}

	src, err := source.Open(c.String("input"), source.WithDelimiter(delim))
	if err != nil {
		return cli.Exit(fmt.Sprintf("opening input: %v", err), exitAborted)
	}
	defer src.Close()

	words, err := vocab.NewExtractor(
		vocab.WithColumn(c.String("column")),
		vocab.WithMinWords(c.Int("min-words")),
	).Extract(src)
	if err != nil {
		return cli.Exit(err.Error(), exitAborted)
	}

	var w io.Writer = c.App.Writer
	if out := c.String("output"); out != "-" {
		file, err := os.Create(out)
		if err != nil {
			return cli.Exit(fmt.Sprintf("creating output: %v", err), exitAborted)
		}
		defer file.Close()
		w = file
	}
	if err := vocab.Write(w, words); err != nil {
		return cli.Exit(fmt.Sprintf("writing vocabulary: %v", err), exitAborted)
	}

	fmt.Fprintf(c.App.ErrWriter, "Target word count: %d\n", c.Int("min-words"))
	fmt.Fprintf(c.App.ErrWriter, "Actual words extracted: %d\n", len(words))
	return nil
}
