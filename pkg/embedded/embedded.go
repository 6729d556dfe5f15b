package embedded

import (
	_ "embed"
)

// Embed all prompt data files
//
//go:embed data/prompts/system_prompt.txt
var SystemPromptTxt []byte

//go:embed data/prompts/user_prompt.txt
var UserPromptTxt []byte

//go:embed data/prompts/image_prompts.txt
var ImagePromptsTxt []byte
