// Command teacherflow writes a teacher's conclusion for one or more students.
//
//	LLM_PROVIDER=OLLAMA OLLAMA_MODEL=llama3 OLLAMA_BASE_URL=http://localhost:11434 \
//	    teacherflow --student-id maria123
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "teacherflow:", err)
		os.Exit(1)
	}
}
