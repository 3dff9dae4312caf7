package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sensebox/ttn-osem-integration/internal/storage"
)

var boxCmd = &cobra.Command{
	Use:   "box",
	Short: "Manage the boxes and their TTN integration settings",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		for _, f := range []func() error{setLogLevel, setupStorage} {
			if err := f(); err != nil {
				return err
			}
		}
		return nil
	},
}

var boxCreateCmd = &cobra.Command{
	Use:   "create [box.json]",
	Short: "Create a box from a JSON file (or stdin)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInput(args, func(r io.Reader) error {
			return createBox(cmd.Context(), r, os.Stdout)
		})
	},
}

var boxGetCmd = &cobra.Command{
	Use:   "get [box id]",
	Short: "Print the box with the given ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getBox(cmd.Context(), args[0], os.Stdout)
	},
}

var boxUpdateCmd = &cobra.Command{
	Use:   "update [box.json]",
	Short: "Update a box from a JSON file (or stdin)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInput(args, func(r io.Reader) error {
			return updateBox(cmd.Context(), r, os.Stdout)
		})
	},
}

var boxDeleteCmd = &cobra.Command{
	Use:   "delete [box id]",
	Short: "Delete the box with the given ID, including its measurements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return storage.Transaction(cmd.Context(), func(tx *sqlx.Tx) error {
			return storage.DeleteBox(cmd.Context(), tx, args[0])
		})
	},
}

var boxFlushCacheCmd = &cobra.Command{
	Use:   "flush-cache [app id] [dev id]",
	Short: "Remove the cached boxes of a TTN device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return storage.FlushBoxCache(cmd.Context(), args[0], args[1])
	},
}

func init() {
	boxCmd.AddCommand(boxCreateCmd)
	boxCmd.AddCommand(boxGetCmd)
	boxCmd.AddCommand(boxUpdateCmd)
	boxCmd.AddCommand(boxDeleteCmd)
	boxCmd.AddCommand(boxFlushCacheCmd)
}

func withInput(args []string, f func(io.Reader) error) error {
	if len(args) == 0 || args[0] == "-" {
		return f(os.Stdin)
	}

	file, err := os.Open(args[0])
	if err != nil {
		return errors.Wrap(err, "open box file error")
	}
	defer file.Close()
	return f(file)
}

func readBox(r io.Reader) (storage.Box, error) {
	var b storage.Box
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return b, errors.Wrap(err, "decode box error")
	}
	if _, err := b.Device(); err != nil {
		return b, errors.Wrap(err, "decoding configuration error")
	}
	return b, nil
}

func writeBox(w io.Writer, b storage.Box) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return errors.Wrap(err, "encode box error")
	}
	return nil
}

func createBox(ctx context.Context, r io.Reader, w io.Writer) error {
	b, err := readBox(r)
	if err != nil {
		return err
	}

	err = storage.Transaction(ctx, func(tx *sqlx.Tx) error {
		return storage.CreateBox(ctx, tx, &b)
	})
	if err != nil {
		return errors.Wrap(err, "create box error")
	}
	return writeBox(w, b)
}

func getBox(ctx context.Context, id string, w io.Writer) error {
	b, err := storage.GetBox(ctx, storage.DB(), id)
	if err != nil {
		return errors.Wrap(err, "get box error")
	}
	return writeBox(w, b)
}

func updateBox(ctx context.Context, r io.Reader, w io.Writer) error {
	b, err := readBox(r)
	if err != nil {
		return err
	}
	if b.ID == "" {
		return errors.New("box id must be set")
	}

	err = storage.Transaction(ctx, func(tx *sqlx.Tx) error {
		return storage.UpdateBox(ctx, tx, &b)
	})
	if err != nil {
		return errors.Wrap(err, "update box error")
	}
	return writeBox(w, b)
}
