// Package chromem implements memory.Store on chromem-go. Each owner gets its
// own collection; documents hold the JSON-encoded node and caller-supplied
// embeddings, so no embedding function is configured on the database.
package chromem
