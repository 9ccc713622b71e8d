package storage

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/folio/internal/models"
)

func readLine(scanner *bufio.Scanner, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

// PromptCredentials reads an email and password from in.
func PromptCredentials(in io.Reader, out io.Writer) models.Credentials {
	scanner := bufio.NewScanner(in)
	return models.Credentials{
		Email:    readLine(scanner, out, "Email: "),
		Password: readLine(scanner, out, "Password: "),
	}
}

// PromptContact reads a public contact message from in.
func PromptContact(in io.Reader, out io.Writer) models.Message {
	scanner := bufio.NewScanner(in)
	return models.Message{
		Name:    readLine(scanner, out, "Your name: "),
		Email:   readLine(scanner, out, "Your email: "),
		Message: readLine(scanner, out, "Message: "),
	}
}
