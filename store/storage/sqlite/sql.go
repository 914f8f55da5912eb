package sqlite

import "github.com/nonibytes/qfilter/store/storage"

const ddlBase = `
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT PRIMARY KEY,
  value TEXT
);

CREATE TABLE IF NOT EXISTS documents (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  collection TEXT    NOT NULL,
  doc_id     TEXT    NOT NULL,
  data_json  TEXT    NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  UNIQUE (collection, doc_id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, id);
`

var SQLTemplates = storage.SQL{
	GetMeta: "SELECT value FROM meta WHERE key = ?1",
	SetMeta: "INSERT INTO meta(key,value) VALUES(?1,?2) ON CONFLICT(key) DO UPDATE SET value=excluded.value",
	UpsertDoc: `INSERT INTO documents(collection, doc_id, data_json, created_at, updated_at)
		VALUES(?1, ?2, ?3, ?4, ?4)
		ON CONFLICT(collection, doc_id) DO UPDATE SET data_json=excluded.data_json, updated_at=excluded.updated_at
		RETURNING id`,
	GetDoc:          "SELECT id, data_json, created_at, updated_at FROM documents WHERE collection = ?1 AND doc_id = ?2",
	DeleteDoc:       "DELETE FROM documents WHERE collection = ?1 AND doc_id = ?2",
	CountDocs:       "SELECT COUNT(*) FROM documents WHERE collection = ?1",
	ListCollections: "SELECT collection, COUNT(*) FROM documents GROUP BY collection ORDER BY collection",
}
