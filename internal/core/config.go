package core

type PromptConfig interface {
	GetBasePromptPath() string
	GetGroupPromptPath() string
	GetMemoryPromptPath() string
	GetDiaryPromptPath() string
	GetReminderPromptPath() string
	GetPersonaPath() string
}
