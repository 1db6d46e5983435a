package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT true,
				version INTEGER NOT NULL,
				last_step_code INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				CONSTRAINT workflows_name_key UNIQUE (name)
			);

			CREATE TABLE workflow_steps (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				step_code INTEGER NOT NULL,
				step_name VARCHAR(255) NOT NULL,
				step_order INTEGER NOT NULL,
				category_code INTEGER NOT NULL CHECK (category_code IN (10, 20, 30, 40)),
				workgroup_id VARCHAR(255),
				allowed_next_steps TEXT[],
				allowed_previous_steps TEXT[],
				PRIMARY KEY (workflow_id, step_code),
				UNIQUE (workflow_id, step_name),
				UNIQUE (workflow_id, step_order)
			);

			CREATE INDEX idx_workflow_steps_workflow_id ON workflow_steps(workflow_id);
		`,
		2: `
			-- Tickets and their audit trail
			CREATE TABLE tickets (
				id VARCHAR(255) PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id),
				current_step_code INTEGER NOT NULL,
				workgroup_id VARCHAR(255),
				responsible_employee_id VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_tickets_workflow_id ON tickets(workflow_id);

			CREATE TABLE ticket_history (
				id VARCHAR(255) PRIMARY KEY,
				ticket_id VARCHAR(255) NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
				field_name VARCHAR(255) NOT NULL,
				old_value TEXT NOT NULL,
				new_value TEXT NOT NULL,
				changed_by VARCHAR(255) NOT NULL,
				changed_at TIMESTAMP WITH TIME ZONE NOT NULL,
				seq BIGSERIAL
			);

			CREATE INDEX idx_ticket_history_ticket_id ON ticket_history(ticket_id, seq);
		`,
		3: `
			-- Employee directory
			CREATE TABLE workgroups (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL
			);

			CREATE TABLE employees (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) NOT NULL DEFAULT '',
				active BOOLEAN NOT NULL DEFAULT true
			);

			CREATE TABLE employee_workgroups (
				employee_id VARCHAR(255) NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
				workgroup_id VARCHAR(255) NOT NULL,
				PRIMARY KEY (employee_id, workgroup_id)
			);

			CREATE INDEX idx_employee_workgroups_workgroup_id ON employee_workgroups(workgroup_id);
		`,
	}
}
