package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cnclabs/sdm/internal/config"
	"github.com/cnclabs/sdm/internal/dataset"
	"github.com/cnclabs/sdm/internal/export"
	"github.com/cnclabs/sdm/internal/models/sdm"
	"github.com/cnclabs/sdm/pkg/feature"
	"github.com/cnclabs/sdm/pkg/logger"
)

type options struct {
	config  string
	data    string
	users   string
	items   string
	userKey string
	logMode string
	train   bool
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:   "sdm",
		Short: "Sequential Deep Matching model (CIKM 2019)",
		Long: `[SMORe-Go]
	Golang implementation of SDM - Sequential Deep Matching

Description:
	SDM: Sequential Deep Matching Model for Online Large-scale Recommender System
	By Fuyu Lv, Taiwei Jin, Changlong Yu et al.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.config, "config", "", "Model definition (YAML)")
	root.PersistentFlags().StringVar(&opts.logMode, "log", "dev", "Log mode: dev or prod")
	_ = root.MarkPersistentFlagRequired("config")

	inputs := &cobra.Command{
		Use:   "inputs",
		Short: "Print the declared user and item inputs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, log, err := buildModel(opts)
			if err != nil {
				return err
			}
			defer log.Sync()
			for _, in := range res.Model.Inputs() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", in.Side, in.Name, in.Length)
			}
			return nil
		},
	}

	loss := &cobra.Command{
		Use:   "loss",
		Short: "Compute the mean sampled softmax loss over a sample file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, log, err := buildModel(opts)
			if err != nil {
				return err
			}
			defer log.Sync()
			batch, err := dataset.Load(opts.data, res.Model.Inputs())
			if err != nil {
				return err
			}
			out, err := res.Model.Forward(cmd.Context(), batch, opts.train)
			if err != nil {
				return err
			}
			sum := 0.0
			for _, row := range out {
				sum += row[0]
			}
			mean := sum / float64(len(out))
			log.Info("Loss", "samples", len(out), "mean", mean, "l2", res.Model.RegularizationLoss())
			fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", mean)
			return nil
		},
	}
	loss.Flags().StringVar(&opts.data, "data", "", "Samples (JSON lines)")
	loss.Flags().BoolVar(&opts.train, "train", false, "Evaluate in training mode (dropout on)")
	_ = loss.MarkFlagRequired("data")

	exp := &cobra.Command{
		Use:   "export",
		Short: "Save user and item embeddings for a retrieval index",
		Example: "  sdm export --config model.yaml --data users.jsonl --users user_emb.txt --items item_emb.txt --user_key user_id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, log, err := buildModel(opts)
			if err != nil {
				return err
			}
			defer log.Sync()
			return exportEmbeddings(cmd.Context(), res, opts, log)
		},
	}
	exp.Flags().StringVar(&opts.data, "data", "", "User samples (JSON lines)")
	exp.Flags().StringVar(&opts.users, "users", "", "Save the user representation data")
	exp.Flags().StringVar(&opts.items, "items", "", "Save the item representation data")
	exp.Flags().StringVar(&opts.userKey, "user_key", "", "User input used to name user vectors (default: line number)")

	root.AddCommand(inputs, loss, exp)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildModel(opts *options) (*sdm.Result, *logger.Logger, error) {
	log, err := logger.New(opts.logMode)
	if err != nil {
		return nil, nil, err
	}
	f, err := config.Load(opts.config)
	if err != nil {
		return nil, nil, err
	}
	user, item, err := f.Columns()
	if err != nil {
		return nil, nil, err
	}
	res, err := sdm.Build(user, item, f.Features.History, f.Model, log)
	if err != nil {
		return nil, nil, err
	}
	return res, log, nil
}

func exportEmbeddings(ctx context.Context, res *sdm.Result, opts *options, log *logger.Logger) error {
	if opts.users == "" && opts.items == "" {
		return errors.New("nothing to export: set --users and/or --items")
	}

	if opts.items != "" {
		items := res.Model.ItemMatrix()
		names := make([]string, len(items))
		for id := range names {
			names[id] = strconv.Itoa(id)
		}
		if err := export.Save(opts.items, names, items); err != nil {
			return err
		}
		log.Info("Save Model", "items", len(items), "dim", res.ItemEmbedding.Dim(), "file", opts.items)
	}

	if opts.users != "" {
		if opts.data == "" {
			return errors.New("--users needs --data")
		}
		batch, err := dataset.Load(opts.data, res.UserInputs)
		if err != nil {
			return err
		}
		users, err := res.UserEmbedding.Eval(ctx, batch)
		if err != nil {
			return err
		}
		names, err := userNames(batch, len(users), opts.userKey, res.UserInputs)
		if err != nil {
			return err
		}
		if err := export.Save(opts.users, names, users); err != nil {
			return err
		}
		log.Info("Save Model", "users", len(users), "dim", res.UserEmbedding.Dim(), "file", opts.users)
	}
	return nil
}

func userNames(batch feature.Batch, n int, key string, inputs []feature.Input) ([]string, error) {
	names := make([]string, n)
	if key == "" {
		for i := range names {
			names[i] = strconv.Itoa(i)
		}
		return names, nil
	}
	for _, in := range inputs {
		if in.Name == key {
			for i := range names {
				names[i] = strconv.FormatInt(batch.Scalar(key, i), 10)
			}
			return names, nil
		}
	}
	return nil, errors.Errorf("user_key %q is not a user input", key)
}
