package types

// AllModels lists every persisted model in migration order. Parents come
// before children so AutoMigrate can resolve references.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&UserToken{},
		&Organization{},
		&OrgMembership{},
		&Program{},
		&Phase{},
		&Lesson{},
		&Tactic{},
		&Assessment{},
		&AssessmentQuestion{},
		&LessonResource{},
		&TranscriptSegment{},
		&Enrollment{},
		&LessonProgress{},
		&TacticProgress{},
		&AssessmentAttempt{},
		&UserEvent{},
		&ChatThread{},
		&ChatMessage{},
		&JobRun{},
		&Certificate{},
		&WellnessEntry{},
		&Property{},
		&RelationshipCheckin{},
	}
}
