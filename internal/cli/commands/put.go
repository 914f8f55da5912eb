package commands

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nonibytes/qfilter/internal/cliutil"
	"github.com/nonibytes/qfilter/qfilter/value"
	"github.com/nonibytes/qfilter/store"
)

func NewPutCmd(env *cliutil.Env) *cobra.Command {
	var (
		id         string
		docJSON    string
		sets       []string
		importPath string
		idField    string
		genIDs     bool
	)
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Store documents in the configured collection",
		Long: `Store documents in the configured collection.

With --id a single document is written, built from --json and --set. --set
values are typed like query values (numbers, booleans, null, dates, JSON arrays).
Without --id, JSON objects are read one per line from --import or stdin and
stored under their --id-field in one transaction. --generate-ids gives lines
without that field a random UUID.`,
		Example: `  qfilter put --id u1 --json '{"name":"Ann"}' --set age=34 --set is_verified=true
  qfilter put -c users < users.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := env.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			coll, err := env.Collection(s)
			if err != nil {
				return err
			}

			// single doc mode
			if id != "" {
				doc, err := singleDoc(docJSON, sets)
				if err != nil {
					return err
				}
				if err := coll.Put(ctx, id, doc); err != nil {
					return cliutil.WithStackTrace(err)
				}
				fmt.Fprintf(env.Stdout, "put %s\n", id)
				return nil
			}

			// import/jsonl mode
			r := env.Stdin
			if importPath != "" {
				f, err := os.Open(importPath)
				if err != nil {
					return cliutil.WithStackTrace(err)
				}
				defer f.Close()
				r = f
			}
			batch, err := readBatch(r, idField, genIDs)
			if err != nil {
				return err
			}
			count, err := coll.Apply(ctx, batch)
			if err != nil {
				return cliutil.WithStackTrace(err)
			}
			fmt.Fprintf(env.Stdout, "imported %d\n", count)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "document id (single document mode)")
	cmd.Flags().StringVar(&docJSON, "json", "", "document body as a JSON object")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set k=v on the document (repeatable)")
	cmd.Flags().StringVar(&importPath, "import", "", "read JSON lines from this file instead of stdin")
	cmd.Flags().StringVar(&idField, "id-field", "id", "field holding the document id in imported lines")
	cmd.Flags().BoolVar(&genIDs, "generate-ids", false, "assign a random UUID to imported lines without an id")
	return cmd
}

func singleDoc(docJSON string, sets []string) (map[string]any, error) {
	doc := map[string]any{}
	if docJSON != "" {
		if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
			return nil, cliutil.WithStackTrace(fmt.Errorf("--json: %w", err))
		}
		if doc == nil {
			return nil, cliutil.WithStackTrace(fmt.Errorf("--json must be an object"))
		}
	}
	for _, kv := range sets {
		k, raw, ok := strings.Cut(kv, "=")
		if !ok {
			doc[kv] = true
			continue
		}
		v, err := value.Infer(raw)
		if err != nil {
			return nil, cliutil.WithStackTrace(err)
		}
		doc[k] = v
	}
	return doc, nil
}

func readBatch(r io.Reader, idField string, genIDs bool) (*store.Batch, error) {
	batch := store.NewBatch()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			return nil, cliutil.WithStackTrace(fmt.Errorf("line %d: %w", lineNo, err))
		}
		id, err := docID(doc, idField)
		if errors.Is(err, errNoID) && genIDs {
			id, err = uuid.NewString(), nil
		}
		if err != nil {
			return nil, cliutil.WithStackTrace(fmt.Errorf("line %d: %w", lineNo, err))
		}
		if err := batch.PutJSON(id, line); err != nil {
			return nil, cliutil.WithStackTrace(fmt.Errorf("line %d: %w", lineNo, err))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, cliutil.WithStackTrace(err)
	}
	return batch, nil
}

var errNoID = errors.New("no id")

func docID(doc map[string]any, field string) (string, error) {
	raw, ok := doc[field]
	if !ok {
		return "", fmt.Errorf("missing %q field: %w", field, errNoID)
	}
	switch v := raw.(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case json.Number:
		return v.String(), nil
	}
	return "", fmt.Errorf("%q field must be a non-empty string or a number", field)
}
