package versions

import (
	"studyhub/studyhub/schema"

	"gorm.io/gorm"
)

// Migration_0_initial_schema creates the full schema on databases that predate
// gormigrate tracking. InitSchema handles clean databases; this version exists
// so that partially provisioned databases converge on the same state.
func Migration_0_initial_schema(txn *gorm.DB) error {
	return txn.AutoMigrate(
		&schema.User{}, &schema.Notebook{}, &schema.Note{},
		&schema.Quiz{}, &schema.Question{}, &schema.Flashcard{},
		&schema.StudyGroup{}, &schema.GroupMembership{}, &schema.GroupInvitation{},
		&schema.SharedNote{}, &schema.SharedQuiz{}, &schema.SharedFlashcard{},
		&schema.SharedLink{}, &schema.GroupResource{}, &schema.ResourceLike{},
		&schema.ChatMessage{},
	)
}
