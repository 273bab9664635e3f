package postgres

// Question is one multiple choice question of a game.
type Question struct {
	ID            uint   `gorm:"primaryKey"`
	GameID        uint   `gorm:"not null;uniqueIndex:idx_questions_game_number"`
	Number        int    `gorm:"not null;uniqueIndex:idx_questions_game_number"`
	Prompt        string `gorm:"type:text;not null"`
	OptionA       string `gorm:"size:255;not null"`
	OptionB       string `gorm:"size:255;not null"`
	OptionC       string `gorm:"size:255;not null"`
	CorrectAnswer string `gorm:"size:1;not null"`
}
