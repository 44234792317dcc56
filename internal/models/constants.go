package models

// Роли пользователей
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// ValidRoles список валидных ролей
var ValidRoles = map[string]struct{}{
	RoleClient:     {},
	RoleFreelancer: {},
	RoleAdmin:      {},
}

// Ключи пакетов услуги
const (
	PackageBasic    = "basic"
	PackageStandard = "standard"
	PackagePremium  = "premium"
)

// ValidPackageKeys список допустимых пакетов услуги
var ValidPackageKeys = map[string]struct{}{
	PackageBasic:    {},
	PackageStandard: {},
	PackagePremium:  {},
}

// MaxApplicationAttachments максимальное число вложений в отклике
const MaxApplicationAttachments = 5
