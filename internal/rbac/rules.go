package rbac

// Default policy for the four platform roles.
var RolePermissions = map[string][]string{
	"student": {
		"course:view-own",
		"exam:view",
		"attempt:start",
		"attempt:submit",
		"attempt:view-own",
		"grade:view-own",
	},
	"instructor": {
		"course:view-own",
		"course:students",
		"exam:create",
		"exam:delete-own",
		"exam:view",
		"question:create",
		"question:delete",
		"attempt:view-all",
		"grade:view-course",
	},
	"department_head": {
		"course:view-all",
		"exam:view",
		"grade:view-all",
		"stats:view",
	},
	"admin": {
		"*", // everything
	},
}
