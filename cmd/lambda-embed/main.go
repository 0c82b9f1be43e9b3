package main

import (
	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/byteness/embedrelay/lambda"
)

func main() {
	router := lambda.NewRouter(lambda.NewHandler(nil))
	awslambda.Start(router.Route)
}
