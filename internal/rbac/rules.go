package rbac

// Route-level policy. This is the coarse gate in front of the attempt
// service; the service itself still re-checks course staffing per call.
var RolePermissions = map[string][]string{
	"student": {
		"attempt:enroll",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
	},
	"teacher": {
		"attempt:enroll", // instructor preview
		"attempt:save",
		"attempt:submit",
		"attempt:view-all",
		"attempt:list",
		"attempt:ban",
		"attempt:delete",
		"attempt:grade",
		"attempt:override-score",
	},
	"admin": {
		"*", // everything
	},
}
