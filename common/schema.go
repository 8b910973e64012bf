package common

// InitSchemas runs the given schema statements, all of them are written to
// be idempotent (IF NOT EXISTS) so this is safe to run on every startup.
// There is only ever one bot process against a database so no locking is
// done around it.
func InitSchemas(name string, schemas ...string) {
	for i, v := range schemas {
		_, err := PQ.Exec(v)
		if err != nil {
			logger.WithError(err).Fatalf("failed initializing db schema %s[%d]", name, i)
		}
	}
}
