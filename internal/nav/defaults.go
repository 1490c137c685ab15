package nav

// DefaultConfig returns the console's built-in navigation tree. Deployments
// adjust it through a patch file, never by editing this table.
func DefaultConfig() Config {
	return Config{
		Categories: []Category{
			{
				Name: "main",
				Items: []Item{
					{Path: "/", Name: "Home", Icon: "home"},
					{Path: "/dashboard", Name: "Dashboard", Icon: "dashboard", Protected: true},
				},
			},
			{
				Name: "workspace",
				Items: []Item{
					{Path: "/apps", Name: "Apps", Icon: "apps", Protected: true},
					{Path: "/agents", Name: "Agents", Icon: "smart_toy", Protected: true},
					{Path: "/repositories", Name: "Repositories", Icon: "folder", Protected: true},
					{Path: "/mcp-servers", Name: "MCP Servers", Icon: "dns", Protected: true},
				},
			},
			{
				Name: "admin",
				Items: []Item{
					{Path: "/admin/users", Name: "Users", Icon: "group", Protected: true, AdminOnly: true},
					{Path: "/admin/sessions", Name: "Sessions", Icon: "badge", Protected: true, AdminOnly: true},
					{Path: "/admin/settings", Name: "Settings", Icon: "settings", Protected: true, AdminOnly: true},
				},
			},
		},
	}
}
