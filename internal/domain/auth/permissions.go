package auth

const (
	CapPayrollView         = "payroll.view"
	CapPayrollManage       = "payroll.manage"
	CapFinanceApprove      = "finance.approve"
	CapEmployeeManage      = "employee.manage"
	CapGoalsManage         = "goals.manage"
	CapTeamManage          = "team.manage"
	CapPerformanceEvaluate = "performance.evaluate"
	CapLeaveApprove        = "leave.approve"
	CapWildcard            = "*"
)

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleFinance  = "finance"
	RoleAdmin    = "admin"
)

var DefaultPermissions = []string{
	CapPayrollView,
	CapPayrollManage,
	CapFinanceApprove,
	CapEmployeeManage,
	CapGoalsManage,
	CapTeamManage,
	CapPerformanceEvaluate,
	CapLeaveApprove,
	CapWildcard,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		CapPayrollView,
	},
	RoleManager: {
		CapPayrollView,
		CapGoalsManage,
		CapTeamManage,
		CapPerformanceEvaluate,
		CapLeaveApprove,
	},
	RoleHR: {
		CapPayrollView,
		CapPayrollManage,
		CapEmployeeManage,
		CapLeaveApprove,
	},
	RoleFinance: {
		CapPayrollView,
		CapFinanceApprove,
	},
	RoleAdmin: {
		CapWildcard,
	},
}
