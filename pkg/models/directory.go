package models

// Workgroup is an owning team a step can be assigned to.
type Workgroup struct {
	ID   string `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Employee is a directory member that can be made responsible for a ticket.
type Employee struct {
	ID           string   `json:"id"            yaml:"id"`
	Name         string   `json:"name"          yaml:"name"`
	Email        string   `json:"email"         yaml:"email"`
	Active       bool     `json:"active"        yaml:"active"`
	WorkgroupIDs []string `json:"workgroup_ids" yaml:"workgroups"`
}
