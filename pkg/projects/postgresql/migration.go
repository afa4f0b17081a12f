package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create projects table
			CREATE TABLE projects (
				owner VARCHAR(255) NOT NULL,
				id INTEGER NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				views JSONB NOT NULL DEFAULT '[]',
				folder TEXT NOT NULL,
				profile VARCHAR(255),
				module_prefix VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (owner, id)
			);

			CREATE UNIQUE INDEX idx_projects_owner_folder ON projects(owner, folder);
			CREATE INDEX idx_projects_created_at ON projects(created_at);
		`,
	}
}
