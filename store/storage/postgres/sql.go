package postgres

import "github.com/nonibytes/qfilter/store/storage"

var SQLTemplates = storage.SQL{
	GetMeta: "SELECT value FROM meta WHERE key = $1",
	SetMeta: "INSERT INTO meta(key,value) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value",
	UpsertDoc: `INSERT INTO documents(collection, doc_id, data_json, created_at, updated_at)
	        VALUES($1, $2, $3::jsonb, $4, $4)
	        ON CONFLICT(collection, doc_id) DO UPDATE
	          SET data_json=EXCLUDED.data_json,
	              updated_at=EXCLUDED.updated_at
	        RETURNING id`,
	GetDoc:          "SELECT id, data_json::text, created_at, updated_at FROM documents WHERE collection = $1 AND doc_id = $2",
	DeleteDoc:       "DELETE FROM documents WHERE collection = $1 AND doc_id = $2",
	CountDocs:       "SELECT COUNT(*) FROM documents WHERE collection = $1",
	ListCollections: "SELECT collection, COUNT(*) FROM documents GROUP BY collection ORDER BY collection",
}
