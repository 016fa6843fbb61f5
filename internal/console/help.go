package console

// HelpText describes the accepted query language.
const HelpText = `This version of SQL Observer lets you choose which fields of the table are
displayed as the result.

Keywords are case sensitive, so "select" and "from" MUST be in lower case.
A trailing ";" is optional. Use "*" to display every field.

Only the "students" table can be queried; other tables are rejected.

Examples:

  select * from students
  select StudentID, LastName, FirstName from students
  select LastName, DP, StartYear from students
  select LastName, City from students
`
