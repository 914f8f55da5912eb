package store

import (
	"context"

	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
)

type batchOpKind int

const (
	batchPut batchOpKind = iota
	batchDelete
)

type batchOp struct {
	kind batchOpKind
	id   string
	doc  map[string]any // for put
}

// Batch collects puts and deletes applied in one transaction
type Batch struct {
	ops []batchOp
}

func NewBatch() *Batch {
	return &Batch{ops: make([]batchOp, 0)}
}

func (b *Batch) Put(id string, doc map[string]any) error {
	if id == "" {
		return qerrors.New(qerrors.ErrDocument, "document id cannot be empty")
	}
	b.ops = append(b.ops, batchOp{kind: batchPut, id: id, doc: doc})
	return nil
}

func (b *Batch) PutJSON(id string, docJSON []byte) error {
	doc, err := decodeDoc(docJSON)
	if err != nil {
		return err
	}
	return b.Put(id, doc)
}

func (b *Batch) Delete(id string) error {
	if id == "" {
		return qerrors.New(qerrors.ErrDocument, "document id cannot be empty")
	}
	b.ops = append(b.ops, batchOp{kind: batchDelete, id: id})
	return nil
}

func (b *Batch) Len() int {
	return len(b.ops)
}

func (b *Batch) Empty() bool {
	return len(b.ops) == 0
}

// Apply runs every operation of b in one transaction and returns how many
// were applied. Deleting a missing id is not an error and is not counted.
func (c *Collection) Apply(ctx context.Context, b *Batch) (int, error) {
	if b == nil || b.Empty() {
		return 0, nil
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, qerrors.Wrap(qerrors.ErrSQL, "begin transaction", err)
	}
	defer tx.Rollback()

	nowMS := c.store.nowMS()
	count := 0
	for _, op := range b.ops {
		switch op.kind {
		case batchPut:
			if err := c.put(ctx, tx, op.id, op.doc, nowMS); err != nil {
				return 0, err
			}
		case batchDelete:
			found, err := c.delete(ctx, tx, op.id)
			if err != nil {
				return 0, err
			}
			if !found {
				continue
			}
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, qerrors.Wrap(qerrors.ErrSQL, "commit transaction", err)
	}
	c.log.Debug("applied batch", "ops", b.Len(), "applied", count)
	return count, nil
}
