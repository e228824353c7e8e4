package types

const ContextUserKey = "user"

// SystemUserEmail identifies the reserved creator of AI-generated tasks.
const SystemUserEmail = "system@abricot.app"

const SystemUserName = "Abricot IA"

const (
	MaxTaskTitleLength = 200
	MaxAITitleLength   = 80
)
