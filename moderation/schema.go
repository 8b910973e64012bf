package moderation

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS infractions (
	id SERIAL PRIMARY KEY,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,

	user_id TEXT NOT NULL,
	author_id TEXT NOT NULL,

	type SMALLINT NOT NULL,
	reason TEXT NOT NULL,

	-- null for infractions that never expire
	expires_at TIMESTAMP WITH TIME ZONE,

	active BOOLEAN NOT NULL DEFAULT TRUE
);
`, `
CREATE INDEX IF NOT EXISTS idx_infractions_user_id ON infractions(user_id);
`, `
CREATE INDEX IF NOT EXISTS idx_infractions_active ON infractions(active) WHERE active;
`}
