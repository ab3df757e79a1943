// Some text
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"nullgen/internal"
	"nullgen/internal/generation"
	"nullgen/internal/metadata"
	"os"
	"strings"
)

func main() {
	var assemblyFilePath = flag.String("assemblyPath", "System.Runtime.dll", "The path to the assembly to read nullable annotations from. Default: System.Runtime.dll")
	var inputFilePath = flag.String("input", "", "The path to the file containing names of types and/or methods whose nullability should be decoded.")
	var packageName = flag.String("packageName", "bindings", "The name of the package with generated code. Default: bindings")
	var outputPath = flag.String("outputPath", "./output/", "The path where all generated files will be placed.")
	var forceClean = flag.Bool("forceCleanOutput", false, "If given forces cleaning output file before generation.")
	flag.Usage = func() {
		fmt.Println("App that decodes compiler-emitted nullable annotations and generates Go bindings from them.")
		flag.PrintDefaults()
	}

	flag.Parse()

	if _, err := os.Stat(*assemblyFilePath); errors.Is(err, os.ErrNotExist) {
		metadata.DownloadAssembly(*assemblyFilePath)
	}

	if *inputFilePath == "" {
		log.Fatal("Input file path is missing!")
	} else if _, err := os.Stat(*inputFilePath); errors.Is(err, os.ErrNotExist) {
		log.Fatal("Input file does not exist!")
	}

	err := os.Mkdir(*outputPath, os.ModePerm)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		panic(err)
	}

	err = ClearDirectoryIfNotEmpty(*outputPath, *forceClean)
	internal.PanicOnError(err)

	metadataReader := metadata.NewReader(*assemblyFilePath)
	generator := generation.NewGenerator(*packageName, *outputPath)

	file, err := os.Open(*inputFilePath)
	internal.PanicOnError(err)
	fileScanner := bufio.NewScanner(file)

	for fileScanner.Scan() {
		if err := fileScanner.Err(); err != nil {
			log.Fatal(err)
		}

		methodElement, found, err := metadataReader.TryGetMethod(fileScanner.Text())
		if err != nil {
			log.Printf("Could not decode '%s', skipping: %v", fileScanner.Text(), err)
			continue
		}
		if found {
			printMethod(methodElement)
			generator.RegisterMethod(methodElement)
			continue
		}

		typeElement, found, err := metadataReader.TryGetType(fileScanner.Text())
		if err != nil {
			log.Printf("Could not decode '%s', skipping: %v", fileScanner.Text(), err)
			continue
		}
		if found {
			for _, method := range typeElement.Methods {
				printMethod(method)
			}
			generator.RegisterType(typeElement)
			continue
		}

		log.Printf("No method or type named '%s' was found, skipping.", fileScanner.Text())
	}

	generator.Generate(*outputPath)
}

func printMethod(method metadata.Method) {
	fmt.Printf("method %s\n", method.Name)
	if method.Return != nil {
		printParameter(*method.Return)
	}
	for _, param := range method.Params {
		printParameter(param)
	}
}

func printParameter(param metadata.Parameter) {
	fmt.Printf("  %s %s\n", param.Name, param.Shape.Name)
	for _, node := range param.Nodes {
		fmt.Printf("    %-48s %s\n", node.Type.Name, node.Flag)
	}
}

func ClearDirectoryIfNotEmpty(path string, silent bool) error {
	directory, err := os.Open(path)
	if err != nil {
		return err
	}
	defer directory.Close()

	_, err = directory.Readdirnames(1)
	if err == io.EOF {
		return nil
	}

	if err != nil {
		return err
	}

	var response string
	if !silent {
		fmt.Print("Output directory is not empty. Continuation will result in removing all output file. Proceed? [Y/n]")
		fmt.Scan(&response)
		if strings.ToUpper(response) != "Y" {
			log.Fatal("Explicit agreement was not given. Exiting.")
		}
	}

	fmt.Println("Cleaning output directory.")
	// return os.RemoveAll(path) - Suppressing error for now
	os.RemoveAll(path)
	return nil
}
